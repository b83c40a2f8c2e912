// Package wizard implements the three step writing form: topic, structured
// body, and final review. A Wizard is not safe for concurrent use; callers
// serialize access.
package wizard

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reset980reset980/write0917/internal/models"
)

type Step int

const (
	StepTopic Step = iota + 1
	StepStructure
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepTopic:
		return "topic"
	case StepStructure:
		return "structure"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

const (
	MinIntroductionLength = 100
	MinConclusionLength   = 100
	MinDraftLength        = 500
	MaxSuggestions        = 3
)

var (
	ErrBusy          = errors.New("topic refinement already in progress")
	ErrNotRefining   = errors.New("no topic refinement in progress")
	ErrWrongStep     = errors.New("action not available on this step")
	ErrLastBodyPart  = errors.New("at least one reason is required")
	ErrBodyIndex     = errors.New("body part index out of range")
	ErrSuggestion    = errors.New("suggestion index out of range")
	ErrUnknownField  = errors.New("unknown body part field")
	ErrAlreadyOnLast = errors.New("already on the last step")
)

// ValidationError reports why a forward transition or submit was refused.
// Field names the offending input so it can be shown next to it.
type ValidationError struct {
	Field   string
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type Field string

const (
	FieldReason Field = "reason"
	FieldSource Field = "source"
)

type Wizard struct {
	mode         Mode
	step         Step
	topic        string
	refinedTopic string
	suggestions  []string
	introduction string
	body         []models.BodyPart
	conclusion   string
	draft        string
	refining     bool
}

func New() *Wizard {
	return &Wizard{
		mode: ModeCreate,
		step: StepTopic,
		body: []models.BodyPart{{}},
	}
}

// NewForEdit starts at the first step with every field taken from essay.
func NewForEdit(essay models.Essay) *Wizard {
	body := append([]models.BodyPart(nil), essay.Body...)
	if len(body) == 0 {
		body = []models.BodyPart{{}}
	}
	return &Wizard{
		mode:         ModeEdit,
		step:         StepTopic,
		topic:        essay.Topic,
		introduction: essay.Introduction,
		body:         body,
		conclusion:   essay.Conclusion,
		draft:        essay.FullText,
	}
}

func (w *Wizard) Mode() Mode { return w.mode }
func (w *Wizard) Step() Step { return w.step }
func (w *Wizard) Draft() string { return w.draft }
func (w *Wizard) Refining() bool { return w.refining }
func (w *Wizard) Topic() string { return w.topic }
func (w *Wizard) Refined() string { return w.refinedTopic }
func (w *Wizard) Conclusion() string { return w.conclusion }
func (w *Wizard) Introduction() string { return w.introduction }

func (w *Wizard) Body() []models.BodyPart {
	return append([]models.BodyPart(nil), w.body...)
}

func (w *Wizard) Suggestions() []string {
	return append([]string(nil), w.suggestions...)
}

// EffectiveTopic is the refined topic when one is set, else the raw topic.
func (w *Wizard) EffectiveTopic() string {
	if w.refinedTopic != "" {
		return w.refinedTopic
	}
	return w.topic
}

func (w *Wizard) SetTopic(topic string) { w.topic = topic }
func (w *Wizard) SetRefinedTopic(topic string) { w.refinedTopic = topic }
func (w *Wizard) SetIntroduction(text string) { w.introduction = text }
func (w *Wizard) SetConclusion(text string) { w.conclusion = text }
func (w *Wizard) SetDraft(text string) { w.draft = text }

func (w *Wizard) ChooseSuggestion(i int) error {
	if i < 0 || i >= len(w.suggestions) {
		return ErrSuggestion
	}
	w.refinedTopic = w.suggestions[i]
	return nil
}

func (w *Wizard) AddBodyPart() {
	w.body = append(w.body, models.BodyPart{})
}

func (w *Wizard) UpdateBodyPart(i int, field Field, value string) error {
	if i < 0 || i >= len(w.body) {
		return ErrBodyIndex
	}
	switch field {
	case FieldReason:
		w.body[i].Reason = value
	case FieldSource:
		w.body[i].Source = value
	default:
		return ErrUnknownField
	}
	return nil
}

func (w *Wizard) RemoveBodyPart(i int) error {
	if i < 0 || i >= len(w.body) {
		return ErrBodyIndex
	}
	if len(w.body) == 1 {
		return ErrLastBodyPart
	}
	w.body = append(w.body[:i], w.body[i+1:]...)
	return nil
}

// BeginRefine marks a refinement as in flight and clears the previous result.
func (w *Wizard) BeginRefine() error {
	if w.refining {
		return ErrBusy
	}
	if strings.TrimSpace(w.topic) == "" {
		return &ValidationError{Field: "topic", Message: "먼저 주제를 입력해주세요."}
	}
	w.refining = true
	w.refinedTopic = ""
	w.suggestions = nil
	return nil
}

// FinishRefine applies a refinement. A degraded result leaves the refined
// topic empty so the raw topic stays effective.
func (w *Wizard) FinishRefine(result models.TopicSuggestions) error {
	if !w.refining {
		return ErrNotRefining
	}
	w.refining = false
	if result.Degraded {
		return nil
	}
	w.refinedTopic = result.RefinedTopic
	w.suggestions = result.Suggestions
	if len(w.suggestions) > MaxSuggestions {
		w.suggestions = w.suggestions[:MaxSuggestions]
	}
	return nil
}

// AbortRefine clears the busy flag without touching the topic fields.
func (w *Wizard) AbortRefine() {
	w.refining = false
}

// Validate checks whether the given step may be left forward.
func (w *Wizard) Validate(step Step) error {
	switch step {
	case StepTopic:
		if strings.TrimSpace(w.EffectiveTopic()) == "" {
			return &ValidationError{Field: "topic", Message: "주제를 입력해주세요."}
		}
	case StepStructure:
		if length(w.introduction) < MinIntroductionLength {
			return &ValidationError{
				Field:   "introduction",
				Message: fmt.Sprintf("서론은 %d자 이상 써야 합니다. (현재 %d자)", MinIntroductionLength, length(w.introduction)),
			}
		}
		for i, part := range w.body {
			if strings.TrimSpace(part.Reason) == "" {
				return &ValidationError{Field: "body.reason", Index: i, Message: fmt.Sprintf("%d번째 근거를 입력해주세요.", i+1)}
			}
			if strings.TrimSpace(part.Source) == "" {
				return &ValidationError{Field: "body.source", Index: i, Message: fmt.Sprintf("%d번째 근거의 출처를 입력해주세요.", i+1)}
			}
		}
		if length(w.conclusion) < MinConclusionLength {
			return &ValidationError{
				Field:   "conclusion",
				Message: fmt.Sprintf("결론은 %d자 이상 써야 합니다. (현재 %d자)", MinConclusionLength, length(w.conclusion)),
			}
		}
	case StepReview:
		n := length(w.draft)
		if n == 0 {
			return &ValidationError{Field: "full_text", Message: "본문 내용을 입력해주세요."}
		}
		if n < MinDraftLength {
			return &ValidationError{
				Field:   "full_text",
				Message: fmt.Sprintf("글자 수가 부족합니다. (현재 %d자 / %d자 이상)", n, MinDraftLength),
			}
		}
	default:
		return ErrWrongStep
	}
	return nil
}

// Next moves one step forward. Entering the review step regenerates the
// draft from the structured fields, discarding manual edits.
func (w *Wizard) Next() error {
	if w.step == StepReview {
		return ErrAlreadyOnLast
	}
	if err := w.Validate(w.step); err != nil {
		return err
	}
	if w.step == StepStructure {
		w.draft = models.ComposeFullText(w.introduction, w.body, w.conclusion)
	}
	w.step++
	return nil
}

func (w *Wizard) Back() {
	if w.step > StepTopic {
		w.step--
	}
}

// Submit returns the finished essay content.
func (w *Wizard) Submit() (models.EssayData, error) {
	if w.step != StepReview {
		return models.EssayData{}, ErrWrongStep
	}
	if err := w.Validate(StepReview); err != nil {
		return models.EssayData{}, err
	}
	return models.EssayData{
		Topic:        strings.TrimSpace(w.EffectiveTopic()),
		Introduction: models.FirstParagraph(w.draft),
		Body:         w.Body(),
		Conclusion:   w.conclusion,
		FullText:     w.draft,
	}, nil
}

func length(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

type Snapshot struct {
	Mode           Mode              `json:"mode"`
	Step           int               `json:"step"`
	StepName       string            `json:"step_name"`
	Topic          string            `json:"topic"`
	RefinedTopic   string            `json:"refined_topic"`
	EffectiveTopic string            `json:"effective_topic"`
	Suggestions    []string          `json:"suggestions"`
	Introduction   string            `json:"introduction"`
	Body           []models.BodyPart `json:"body"`
	Conclusion     string            `json:"conclusion"`
	Draft          string            `json:"draft"`
	DraftLength    int               `json:"draft_length"`
	Refining       bool              `json:"refining"`
	CanAdvance     bool              `json:"can_advance"`
}

func (w *Wizard) Snapshot() Snapshot {
	canAdvance := w.Validate(w.step) == nil
	return Snapshot{
		Mode:           w.mode,
		Step:           int(w.step),
		StepName:       w.step.String(),
		Topic:          w.topic,
		RefinedTopic:   w.refinedTopic,
		EffectiveTopic: w.EffectiveTopic(),
		Suggestions:    w.Suggestions(),
		Introduction:   w.introduction,
		Body:           w.Body(),
		Conclusion:     w.conclusion,
		Draft:          w.draft,
		DraftLength:    utf8.RuneCountInString(w.draft),
		Refining:       w.refining,
		CanAdvance:     canAdvance,
	}
}
