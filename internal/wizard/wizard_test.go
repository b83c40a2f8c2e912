package wizard

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reset980reset980/write0917/internal/models"
)

func text(n int) string {
	return strings.Repeat("가", n)
}

// filled returns a wizard on the structure step with valid content.
func filled(t *testing.T) *Wizard {
	t.Helper()
	w := New()
	w.SetTopic("초등학생 스마트폰 사용을 줄여야 한다")
	require.NoError(t, w.Next())
	w.SetIntroduction(text(120))
	require.NoError(t, w.UpdateBodyPart(0, FieldReason, text(80)))
	require.NoError(t, w.UpdateBodyPart(0, FieldSource, "네이버 지식백과"))
	w.SetConclusion(text(110))
	return w
}

func TestTopicStep(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		refined string
		wantErr bool
	}{
		{name: "empty", wantErr: true},
		{name: "whitespace only", topic: "   \n", wantErr: true},
		{name: "raw topic", topic: "숙제를 줄여야 한다"},
		{name: "refined only", refined: "급식 시간을 늘려야 한다"},
		{name: "blank refined hides raw", topic: "숙제를 줄여야 한다", refined: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New()
			w.SetTopic(tt.topic)
			w.SetRefinedTopic(tt.refined)
			err := w.Next()
			if tt.wantErr {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Equal(t, "topic", verr.Field)
				assert.Equal(t, StepTopic, w.Step())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StepStructure, w.Step())
		})
	}
}

func TestStructureStep(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(w *Wizard)
		wantField string
	}{
		{name: "valid"},
		{name: "short introduction", mutate: func(w *Wizard) { w.SetIntroduction(text(99)) }, wantField: "introduction"},
		{name: "introduction padded with spaces", mutate: func(w *Wizard) { w.SetIntroduction("  " + text(99) + "    ") }, wantField: "introduction"},
		{name: "short conclusion", mutate: func(w *Wizard) { w.SetConclusion(text(50)) }, wantField: "conclusion"},
		{name: "blank reason", mutate: func(w *Wizard) { _ = w.UpdateBodyPart(0, FieldReason, " ") }, wantField: "body.reason"},
		{name: "blank source", mutate: func(w *Wizard) { _ = w.UpdateBodyPart(0, FieldSource, "") }, wantField: "body.source"},
		{name: "second part incomplete", mutate: func(w *Wizard) {
			w.AddBodyPart()
			_ = w.UpdateBodyPart(1, FieldReason, "두 번째 근거")
		}, wantField: "body.source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := filled(t)
			if tt.mutate != nil {
				tt.mutate(w)
			}
			err := w.Next()
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, StepReview, w.Step())
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, StepStructure, w.Step())
		})
	}
}

func TestDraftGeneratedOnReviewEntry(t *testing.T) {
	w := filled(t)
	w.AddBodyPart()
	require.NoError(t, w.UpdateBodyPart(1, FieldReason, "둘째 이유"))
	require.NoError(t, w.UpdateBodyPart(1, FieldSource, "신문"))
	require.NoError(t, w.Next())

	want := text(120) + "\n\n" + text(80) + "\n\n" + "둘째 이유" + "\n\n" + text(110)
	assert.Equal(t, want, w.Draft())

	// Going back keeps manual edits, going forward again overwrites them.
	w.SetDraft("손으로 고친 글")
	w.Back()
	assert.Equal(t, StepStructure, w.Step())
	assert.Equal(t, "손으로 고친 글", w.Draft())
	require.NoError(t, w.Next())
	assert.Equal(t, want, w.Draft())
}

func TestBackNeverValidates(t *testing.T) {
	w := filled(t)
	require.NoError(t, w.Next())
	w.SetDraft("")
	w.Back()
	w.SetIntroduction("")
	w.Back()
	assert.Equal(t, StepTopic, w.Step())
	w.Back()
	assert.Equal(t, StepTopic, w.Step())
}

func TestSubmit(t *testing.T) {
	w := filled(t)
	_, err := w.Submit()
	assert.Equal(t, ErrWrongStep, err)

	require.NoError(t, w.Next())
	_, err = w.Submit()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "draft of %d chars must be rejected", len([]rune(w.Draft())))
	assert.Equal(t, "full_text", verr.Field)

	w.SetDraft("")
	_, err = w.Submit()
	require.Error(t, err)

	draft := text(300) + "\n\n" + text(300)
	w.SetDraft(draft)
	data, err := w.Submit()
	require.NoError(t, err)
	assert.Equal(t, "초등학생 스마트폰 사용을 줄여야 한다", data.Topic)
	assert.Equal(t, text(300), data.Introduction)
	assert.Equal(t, draft, data.FullText)
	assert.Equal(t, text(110), data.Conclusion)
	assert.Len(t, data.Body, 1)
}

func TestBodyParts(t *testing.T) {
	w := New()
	assert.Equal(t, ErrLastBodyPart, w.RemoveBodyPart(0))
	w.AddBodyPart()
	require.NoError(t, w.UpdateBodyPart(1, FieldReason, "r"))
	assert.Equal(t, ErrBodyIndex, w.UpdateBodyPart(2, FieldReason, "x"))
	assert.Equal(t, ErrUnknownField, w.UpdateBodyPart(0, Field("other"), "x"))
	require.NoError(t, w.RemoveBodyPart(0))
	assert.Equal(t, []models.BodyPart{{Reason: "r"}}, w.Body())
}

func TestRefine(t *testing.T) {
	w := New()
	var verr *ValidationError
	require.True(t, errors.As(w.BeginRefine(), &verr))

	w.SetTopic("게임 시간")
	w.SetRefinedTopic("이전 결과")
	require.NoError(t, w.BeginRefine())
	assert.True(t, w.Refining())
	assert.Equal(t, "", w.Refined())
	assert.Equal(t, ErrBusy, w.BeginRefine())

	require.NoError(t, w.FinishRefine(models.TopicSuggestions{
		RefinedTopic: "게임 시간을 하루 한 시간으로 정해야 한다",
		Suggestions:  []string{"a", "b", "c", "d"},
	}))
	assert.False(t, w.Refining())
	assert.Len(t, w.Suggestions(), MaxSuggestions)
	assert.Equal(t, "게임 시간을 하루 한 시간으로 정해야 한다", w.EffectiveTopic())

	require.NoError(t, w.ChooseSuggestion(1))
	assert.Equal(t, "b", w.EffectiveTopic())
	assert.Equal(t, ErrSuggestion, w.ChooseSuggestion(3))
	assert.Equal(t, ErrNotRefining, w.FinishRefine(models.TopicSuggestions{}))

	require.NoError(t, w.BeginRefine())
	require.NoError(t, w.FinishRefine(models.TopicSuggestions{RefinedTopic: "AI 오류", Degraded: true}))
	assert.False(t, w.Refining())
	assert.Empty(t, w.Refined())
	assert.Empty(t, w.Suggestions())
	assert.Equal(t, "게임 시간", w.EffectiveTopic())
}

func TestNewForEdit(t *testing.T) {
	essay := models.Essay{
		EssayData: models.EssayData{
			Topic:        "주제",
			Introduction: "서론",
			Body:         []models.BodyPart{{Reason: "이유", Source: "출처"}},
			Conclusion:   "결론",
			FullText:     "전체 글",
		},
		EditCode: "ABC123",
	}
	w := NewForEdit(essay)
	assert.Equal(t, ModeEdit, w.Mode())
	assert.Equal(t, StepTopic, w.Step())
	assert.Equal(t, "전체 글", w.Draft())
	assert.Equal(t, essay.Body, w.Body())

	// The wizard owns its copy of the body.
	require.NoError(t, w.UpdateBodyPart(0, FieldReason, "바뀐 이유"))
	assert.Equal(t, "이유", essay.Body[0].Reason)
}

func TestSnapshot(t *testing.T) {
	w := filled(t)
	snap := w.Snapshot()
	assert.Equal(t, 2, snap.Step)
	assert.Equal(t, "structure", snap.StepName)
	assert.True(t, snap.CanAdvance)
	assert.Equal(t, ModeCreate, snap.Mode)
}
