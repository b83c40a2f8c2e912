package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service/integration"
	"github.com/reset980reset980/write0917/internal/validation"
)

type recordingPublisher struct {
	mu        sync.Mutex
	submitted []models.EssaySubmittedEvent
	deleted   []models.EssayDeletedEvent
	err       error
}

func (p *recordingPublisher) PublishEssaySubmitted(_ context.Context, e *models.EssaySubmittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, *e)
	return p.err
}

func (p *recordingPublisher) PublishEssayDeleted(_ context.Context, e *models.EssayDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, *e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type mapArchive struct {
	mu   sync.Mutex
	docs map[string][]byte
	err  error
}

func newMapArchive() *mapArchive {
	return &mapArchive{docs: make(map[string][]byte)}
}

func (a *mapArchive) Put(_ context.Context, id string, doc []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.docs[id] = doc
	return nil
}

func (a *mapArchive) Get(_ context.Context, id string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	doc, ok := a.docs[id]
	if !ok {
		return nil, integration.ErrNotArchived
	}
	return doc, nil
}

func (a *mapArchive) Remove(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.docs, id)
	return nil
}

type fixture struct {
	store     *repository.MemoryStore
	publisher *recordingPublisher
	archive   *mapArchive
	essays    *essayService
	comments  CommentService
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	pub := &recordingPublisher{}
	archive := newMapArchive()
	essays := NewEssayService(store.Essays(), pub, archive, zerolog.Nop()).(*essayService)
	return &fixture{
		store:     store,
		publisher: pub,
		archive:   archive,
		essays:    essays,
		comments:  NewCommentService(store.Comments(), store.Essays(), zerolog.Nop()),
	}
}

func createRequest() *models.CreateEssayRequest {
	return &models.CreateEssayRequest{
		EssayData: models.EssayData{
			Topic:        "  초등학생 스마트폰 사용을 줄여야 한다 ",
			Introduction: "서론",
			Body:         []models.BodyPart{{Reason: "이유", Source: "네이버 지식백과"}},
			Conclusion:   "결론",
			FullText:     "서론\n\n이유\n\n결론",
		},
		Student: models.Student{ClassNumber: "2", StudentID: "15", Name: "김민수"},
	}
}

func TestCreateEssay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	essay, err := f.essays.CreateEssay(ctx, createRequest())
	require.NoError(t, err)
	assert.Len(t, essay.EditCode, 6)
	assert.Equal(t, "초등학생 스마트폰 사용을 줄여야 한다", essay.Topic)
	assert.Equal(t, models.DefaultGrade, essay.Student.Grade)
	assert.Equal(t, 0, essay.Likes)
	assert.False(t, essay.CreatedAt.IsZero())

	require.Len(t, f.publisher.submitted, 1)
	assert.Equal(t, essay.ID, f.publisher.submitted[0].EssayID)
	assert.Contains(t, string(f.archive.docs[essay.ID]), "글쓴이: 6학년 2반 15번 김민수")

	list, err := f.essays.ListEssays(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, essay.ID, list[0].ID)
}

func TestCreateEssayValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.CreateEssayRequest)
		field  string
	}{
		{name: "no body", mutate: func(r *models.CreateEssayRequest) { r.Body = nil }, field: "body"},
		{name: "blank reason", mutate: func(r *models.CreateEssayRequest) { r.Body[0].Reason = " " }, field: "body[0].reason"},
		{name: "no name", mutate: func(r *models.CreateEssayRequest) { r.Student.Name = "" }, field: "student.name"},
		{name: "no class", mutate: func(r *models.CreateEssayRequest) { r.Student.ClassNumber = "" }, field: "student.class_number"},
		{name: "blank topic", mutate: func(r *models.CreateEssayRequest) { r.Topic = "  " }, field: "topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := createRequest()
			tt.mutate(req)
			_, err := f.essays.CreateEssay(context.Background(), req)
			var verr *validation.Error
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
			assert.Empty(t, f.publisher.submitted)
		})
	}
}

func TestCreateEssayRetriesCollisions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	f.essays.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, err := f.essays.CreateEssay(ctx, createRequest())
	require.NoError(t, err)
	second, err := f.essays.CreateEssay(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.EditCode)
	assert.Equal(t, "BBBBBB", second.EditCode)

	f.essays.newCode = func() (string, error) { return "AAAAAA", nil }
	_, err = f.essays.CreateEssay(ctx, createRequest())
	assert.Equal(t, ErrEditCodeExhausted, err)
}

func TestEditCodeFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	essay, err := f.essays.CreateEssay(ctx, createRequest())
	require.NoError(t, err)

	found, err := f.essays.FindEssayByCode(ctx, " "+strings.ToLower(essay.EditCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, essay.ID, found.ID)

	_, err = f.essays.FindEssayByCode(ctx, "ABC")
	assert.True(t, errors.Is(err, ErrInvalidEditCode))
	_, err = f.essays.FindEssayByCode(ctx, "")
	assert.True(t, errors.Is(err, ErrInvalidEditCode))
	_, err = f.essays.FindEssayByCode(ctx, "ZZZZZZ")
	assert.Equal(t, ErrEssayNotFound, err)

	_, err = f.essays.IncrementLikes(ctx, essay.ID)
	require.NoError(t, err)

	data := essay.EssayData
	data.Topic = "급식 시간을 늘려야 한다"
	data.FullText = "새 본문"
	updated, err := f.essays.UpdateEssay(ctx, essay.EditCode, data)
	require.NoError(t, err)
	assert.Equal(t, essay.ID, updated.ID)
	assert.Equal(t, essay.EditCode, updated.EditCode)
	assert.Equal(t, essay.Student, updated.Student)
	assert.Equal(t, 1, updated.Likes)
	assert.Equal(t, "급식 시간을 늘려야 한다", updated.Topic)
	assert.Contains(t, string(f.archive.docs[essay.ID]), "새 본문")

	_, err = f.essays.UpdateEssay(ctx, "ZZZZZZ", data)
	assert.Equal(t, ErrEssayNotFound, err)

	require.NoError(t, f.essays.DeleteEssayByCode(ctx, essay.EditCode))
	assert.Equal(t, ErrEssayNotFound, f.essays.DeleteEssayByCode(ctx, essay.EditCode))
	require.Len(t, f.publisher.deleted, 1)
	assert.False(t, f.publisher.deleted[0].ByTeacher)
	assert.NotContains(t, f.archive.docs, essay.ID)
}

func TestDeleteEssayCascadesComments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	essay, err := f.essays.CreateEssay(ctx, createRequest())
	require.NoError(t, err)

	_, err = f.comments.CreateComment(ctx, &models.CreateCommentRequest{EssayID: essay.ID, AuthorName: "선생님", Content: "잘 썼어요"})
	require.NoError(t, err)

	require.NoError(t, f.essays.DeleteEssay(ctx, essay.ID))
	assert.Equal(t, ErrEssayNotFound, f.essays.DeleteEssay(ctx, essay.ID))
	assert.Equal(t, ErrEssayNotFound, f.essays.DeleteEssay(ctx, "not-a-uuid"))
	assert.True(t, f.publisher.deleted[0].ByTeacher)

	_, err = f.comments.ListComments(ctx, essay.ID)
	assert.Equal(t, ErrEssayNotFound, err)
	remaining, _ := f.store.Comments().ListByEssayID(ctx, essay.ID)
	assert.Empty(t, remaining)
}

func TestBestEffortCollaborators(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker down")
	f.archive.err = errors.New("minio down")

	essay, err := f.essays.CreateEssay(context.Background(), createRequest())
	require.NoError(t, err)

	doc, err := f.essays.ExportEssay(context.Background(), essay.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "제목: 초등학생 스마트폰 사용을 줄여야 한다\n"))
	assert.True(t, strings.HasSuffix(string(doc), essay.FullText+"\n"))
}

func TestComments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	essay, err := f.essays.CreateEssay(ctx, createRequest())
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cs := f.comments.(*commentService)
	tick := 0
	cs.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_, err = f.comments.CreateComment(ctx, &models.CreateCommentRequest{EssayID: essay.ID, AuthorName: "김민수", Content: " 첫 댓글 ",
		Author: &models.Student{Grade: "6", ClassNumber: "2", StudentID: "15", Name: "김민수"}})
	require.NoError(t, err)
	_, err = f.comments.CreateComment(ctx, &models.CreateCommentRequest{EssayID: essay.ID, AuthorName: "선생님", Content: "둘째"})
	require.NoError(t, err)

	_, err = f.comments.CreateComment(ctx, &models.CreateCommentRequest{EssayID: essay.ID, AuthorName: "선생님", Content: "   "})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "content")

	_, err = f.comments.CreateComment(ctx, &models.CreateCommentRequest{EssayID: essay.ID, AuthorName: "", Content: "x"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "author_name")

	_, err = f.comments.CreateComment(ctx, &models.CreateCommentRequest{EssayID: "00000000-0000-0000-0000-000000000000", AuthorName: "a", Content: "x"})
	assert.Equal(t, ErrEssayNotFound, err)

	list, err := f.comments.ListComments(ctx, essay.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "첫 댓글", list[0].Content)
	assert.Equal(t, "둘째", list[1].Content)
	require.NotNil(t, list[0].Author)
	assert.Nil(t, list[1].Author)
}

func TestAuthService(t *testing.T) {
	svc, err := NewAuthService("sesame", "secret", time.Hour, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.LoginTeacher("wrong")
	assert.Equal(t, ErrInvalidPassword, err)

	tok, err := svc.LoginTeacher("sesame")
	require.NoError(t, err)
	assert.NoError(t, svc.VerifyToken(tok.Token))
	assert.Equal(t, ErrInvalidToken, svc.VerifyToken(tok.Token+"x"))
	assert.Equal(t, ErrInvalidToken, svc.VerifyToken(""))

	other, err := NewAuthService("sesame", "other-secret", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidToken, other.VerifyToken(tok.Token))

	expired := svc.(*authService)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, ErrInvalidToken, expired.VerifyToken(tok.Token))

	disabled, err := NewAuthService("", "", 0, zerolog.Nop())
	require.NoError(t, err)
	_, err = disabled.LoginTeacher("")
	assert.Equal(t, ErrTeacherAuthOff, err)
}

type fakeAI struct {
	result models.TopicSuggestions
	reply  string
	err    error
	calls  int
}

func (f *fakeAI) RefineTopic(context.Context, string) (models.TopicSuggestions, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeAI) Advise(context.Context, models.WritingProgress, string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestTopicService(t *testing.T) {
	ai := &fakeAI{result: models.TopicSuggestions{RefinedTopic: "다듬은 주제", Suggestions: []string{"a"}}, reply: "조언"}
	svc := NewTopicService(ai, repository.NewMemoryRateLimitRepository(), 2, time.Hour, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, "다듬은 주제", svc.RefineTopic(ctx, "v1", "주제").RefinedTopic)
	assert.Equal(t, "다듬은 주제", svc.RefineTopic(ctx, "v1", "주제").RefinedTopic)
	limited := svc.RefineTopic(ctx, "v1", "주제")
	assert.Equal(t, MessageRateLimited, limited.RefinedTopic)
	assert.True(t, limited.Degraded)
	assert.Empty(t, limited.Suggestions)
	assert.Equal(t, 2, ai.calls)

	assert.Equal(t, "다듬은 주제", svc.RefineTopic(ctx, "v2", "주제").RefinedTopic)
	assert.Equal(t, "조언", svc.Advise(ctx, &models.AdviceRequest{Question: "q", ViewerKey: "v1"}).Reply)

	ai.err = errors.New("timeout")
	failed := svc.RefineTopic(ctx, "v3", "주제")
	assert.Equal(t, integration.MessageAIFailure, failed.RefinedTopic)
	assert.True(t, failed.Degraded)
	ai.err = integration.ErrNoAPIKey
	assert.Equal(t, integration.MessageNoAPIKey, svc.RefineTopic(ctx, "v4", "주제").RefinedTopic)
	assert.Equal(t, integration.MessageNoAPIKey, svc.Advise(ctx, &models.AdviceRequest{Question: "q", ViewerKey: "v4"}).Reply)
}
