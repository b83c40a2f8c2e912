package httpd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reset980reset980/write0917/internal/middleware"
	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service"
	"github.com/reset980reset980/write0917/internal/service/integration"
	"github.com/reset980reset980/write0917/internal/session"
)

const teacherPassword = "teacher-pw"

type fakeAI struct{}

func (fakeAI) RefineTopic(_ context.Context, topic string) (models.TopicSuggestions, error) {
	return models.TopicSuggestions{RefinedTopic: topic + "을 줄여야 한다", Suggestions: []string{"하나", "둘"}}, nil
}

func (fakeAI) Advise(context.Context, models.WritingProgress, string) (string, error) {
	return "근거를 하나 더 찾아보세요.", nil
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type testServer struct {
	router http.Handler
	token  string
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, setupMessage string) *testServer {
	return newTestServerWithPinger(t, setupMessage, nil)
}

func newTestServerWithPinger(t *testing.T, setupMessage string, pinger repository.Pinger) *testServer {
	t.Helper()
	log := zerolog.Nop()
	store := repository.NewMemoryStore()

	essays := service.NewEssayService(store.Essays(), integration.NewNoopPublisher(), integration.NewNoopArchive(), log)
	comments := service.NewCommentService(store.Comments(), store.Essays(), log)
	auth, err := service.NewAuthService(teacherPassword, "secret", time.Hour, log)
	require.NoError(t, err)
	topics := service.NewTopicService(fakeAI{}, repository.NewMemoryRateLimitRepository(), 10, time.Minute, log)

	sessions := session.NewManager(session.Deps{
		Essays:      essays,
		Comments:    comments,
		Auth:        auth,
		Topics:      topics,
		Liked:       repository.NewMemoryLikedRepository(),
		CallTimeout: time.Second,
		Logger:      log,
	}, time.Hour, setupMessage)

	router := chi.NewRouter()
	router.Use(middleware.OptionalTeacher(auth))
	NewHandler(essays, comments, auth, topics, sessions, pinger, setupMessage, log).RegisterRoutes(router)

	token, err := auth.LoginTeacher(teacherPassword)
	require.NoError(t, err)
	return &testServer{router: router, token: token.Token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, teacher bool) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if teacher {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func essayRequest() models.CreateEssayRequest {
	return models.CreateEssayRequest{
		EssayData: models.EssayData{
			Topic:        "숙제를 줄여야 한다",
			Introduction: "서론",
			Body:         []models.BodyPart{{Reason: "쉴 시간이 필요하다", Source: "학생 설문"}},
			Conclusion:   "결론",
			FullText:     "서론\n\n쉴 시간이 필요하다\n\n결론",
		},
		Student: models.Student{ClassNumber: "2", StudentID: "15", Name: "김민수"},
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	s := newTestServerWithPinger(t, "", pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestEssayLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	status, env := s.do(t, http.MethodPost, "/api/v1/essays", essayRequest(), false)
	require.Equal(t, http.StatusOK, status, env.Message)
	var created models.Essay
	decode(t, env, &created)
	require.Len(t, created.EditCode, 6)
	assert.Equal(t, "6", created.Student.Grade)
	assert.Zero(t, created.Likes)

	status, env = s.do(t, http.MethodGet, "/api/v1/essays", nil, false)
	require.Equal(t, http.StatusOK, status)
	var list models.EssaysResponse
	decode(t, env, &list)
	require.Equal(t, 1, list.Total)
	assert.Empty(t, list.Essays[0].EditCode)

	_, env = s.do(t, http.MethodGet, "/api/v1/essays", nil, true)
	decode(t, env, &list)
	assert.Equal(t, created.EditCode, list.Essays[0].EditCode)

	status, env = s.do(t, http.MethodGet, "/api/v1/essays/code/"+strings.ToLower(created.EditCode), nil, false)
	require.Equal(t, http.StatusOK, status)
	var found models.Essay
	decode(t, env, &found)
	assert.Equal(t, created.ID, found.ID)

	update := models.UpdateEssayRequest{EssayData: created.EssayData}
	update.Topic = "숙제를 없애야 한다"
	status, env = s.do(t, http.MethodPut, "/api/v1/essays/code/"+created.EditCode, update, false)
	require.Equal(t, http.StatusOK, status, env.Message)
	var updated models.Essay
	decode(t, env, &updated)
	assert.Equal(t, "숙제를 없애야 한다", updated.Topic)
	assert.Equal(t, created.EditCode, updated.EditCode)

	status, env = s.do(t, http.MethodPost, "/api/v1/essays/"+created.ID+"/likes", nil, false)
	require.Equal(t, http.StatusOK, status)
	var liked models.Essay
	decode(t, env, &liked)
	assert.Equal(t, 1, liked.Likes)
	assert.Empty(t, liked.EditCode)

	status, _ = s.do(t, http.MethodPost, "/api/v1/essays/"+created.ID+"/comments",
		models.CreateCommentRequest{AuthorName: "이서연", Content: "잘 읽었어요"}, false)
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodGet, "/api/v1/essays/"+created.ID+"/comments", nil, false)
	require.Equal(t, http.StatusOK, status)
	var comments []models.Comment
	decode(t, env, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "잘 읽었어요", comments[0].Content)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/essays/"+created.ID+"/document", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "숙제를 없애야 한다")

	status, _ = s.do(t, http.MethodDelete, "/api/v1/essays/"+created.ID, nil, false)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodDelete, "/api/v1/essays/"+created.ID, nil, true)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/essays/"+created.ID, nil, false)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found", env.Error)
}

func TestDeleteByCode(t *testing.T) {
	s := newTestServer(t, "")
	_, env := s.do(t, http.MethodPost, "/api/v1/essays", essayRequest(), false)
	var created models.Essay
	decode(t, env, &created)

	status, _ := s.do(t, http.MethodDelete, "/api/v1/essays/code/abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodDelete, "/api/v1/essays/code/"+created.EditCode, nil, false)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/v1/essays/code/"+created.EditCode, nil, false)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name      string
		path      string
		body      interface{}
		wantField string
	}{
		{
			name: "essay without body parts",
			path: "/api/v1/essays",
			body: func() models.CreateEssayRequest {
				req := essayRequest()
				req.Body = nil
				return req
			}(),
			wantField: "body",
		},
		{
			name: "essay without student name",
			path: "/api/v1/essays",
			body: func() models.CreateEssayRequest {
				req := essayRequest()
				req.Student.Name = " "
				return req
			}(),
			wantField: "student.name",
		},
		{name: "blank topic", path: "/api/v1/ai/topic", body: models.RefineTopicRequest{Topic: "  "}, wantField: "topic"},
		{name: "login without password", path: "/api/v1/auth/teacher", body: models.TeacherLoginRequest{}, wantField: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, http.MethodPost, tt.path, tt.body, false)
			require.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, env.Fields, tt.wantField)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/essays", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginTeacher(t *testing.T) {
	s := newTestServer(t, "")

	status, _ := s.do(t, http.MethodPost, "/api/v1/auth/teacher", models.TeacherLoginRequest{Password: "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := s.do(t, http.MethodPost, "/api/v1/auth/teacher", models.TeacherLoginRequest{Password: teacherPassword}, false)
	require.Equal(t, http.StatusOK, status)
	var token models.TokenResponse
	decode(t, env, &token)
	assert.NotEmpty(t, token.Token)
	assert.True(t, token.ExpiresAt.After(time.Now()))
}

func TestAIRoutes(t *testing.T) {
	s := newTestServer(t, "")

	status, env := s.do(t, http.MethodPost, "/api/v1/ai/topic", models.RefineTopicRequest{Topic: "게임 시간"}, false)
	require.Equal(t, http.StatusOK, status)
	var suggestions models.TopicSuggestions
	decode(t, env, &suggestions)
	assert.Equal(t, "게임 시간을 줄여야 한다", suggestions.RefinedTopic)
	assert.Len(t, suggestions.Suggestions, 2)

	status, env = s.do(t, http.MethodPost, "/api/v1/ai/advice", models.AdviceRequest{Question: "결론을 어떻게 쓰나요?"}, false)
	require.Equal(t, http.StatusOK, status)
	var advice models.AdviceResponse
	decode(t, env, &advice)
	assert.Equal(t, "근거를 하나 더 찾아보세요.", advice.Reply)
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t, "")

	status, env := s.do(t, http.MethodPost, "/api/v1/sessions", nil, false)
	require.Equal(t, http.StatusOK, status)
	var snap struct {
		ID   string           `json:"id"`
		View session.ViewKind `json:"view"`
	}
	decode(t, env, &snap)
	assert.Equal(t, session.ViewLanding, snap.View)
	path := "/api/v1/sessions/" + snap.ID

	status, env = s.do(t, http.MethodPost, path+"/actions", session.Action{Type: session.ActionSelectRole, Role: session.RoleStudent}, false)
	require.Equal(t, http.StatusOK, status, env.Message)
	decode(t, env, &snap)
	assert.Equal(t, session.ViewStudentInfo, snap.View)

	status, _ = s.do(t, http.MethodPost, path+"/actions", session.Action{Type: session.ActionLike}, false)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = s.do(t, http.MethodPost, path+"/actions", session.Action{Type: "dance"}, false)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodPost, path+"/actions", map[string]string{}, false)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, http.MethodPost, path+"/actions", session.Action{
		Type:    session.ActionSubmitStudentInfo,
		Student: &models.Student{ClassNumber: "2", StudentID: "15", Name: "김민수"},
	}, false)
	require.Equal(t, http.StatusOK, status)
	decode(t, env, &snap)
	assert.Equal(t, session.ViewGallery, snap.View)

	status, _ = s.do(t, http.MethodGet, path, nil, false)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodDelete, path, nil, false)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, path, nil, false)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSetupRequiredMode(t *testing.T) {
	const message = "데이터베이스 설정이 필요합니다."
	s := newTestServer(t, message)

	status, env := s.do(t, http.MethodGet, "/api/v1/essays", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, message, env.Message)

	status, env = s.do(t, http.MethodPost, "/api/v1/sessions", nil, false)
	require.Equal(t, http.StatusOK, status)
	var snap struct {
		ID   string           `json:"id"`
		View session.ViewKind `json:"view"`
	}
	decode(t, env, &snap)
	assert.Equal(t, session.ViewSetupRequired, snap.View)

	status, env = s.do(t, http.MethodPost, "/api/v1/sessions/"+snap.ID+"/actions", session.Action{Type: session.ActionOpenGallery}, false)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, message, env.Message)
}
