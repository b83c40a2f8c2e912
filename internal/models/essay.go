package models

import (
	"strings"
	"time"
)

type BodyPart struct {
	Reason string `json:"reason" validate:"notblank"`
	Source string `json:"source" validate:"notblank"`
}

// EssayData holds the fields an author may edit.
type EssayData struct {
	Topic        string     `json:"topic" validate:"notblank,max=200"`
	Introduction string     `json:"introduction"`
	Body         []BodyPart `json:"body" validate:"min=1,dive"`
	Conclusion   string     `json:"conclusion"`
	FullText     string     `json:"full_text" validate:"notblank"`
}

type Essay struct {
	EssayData
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Student   Student   `json:"student"`
	EditCode  string    `json:"edit_code,omitempty" db:"edit_code"`
	Likes     int       `json:"likes" db:"likes"`
}

// Public returns a copy without the edit code.
func (e Essay) Public() Essay {
	e.EditCode = ""
	return e
}

func (e Essay) Clone() Essay {
	e.Body = append([]BodyPart(nil), e.Body...)
	return e
}

// ComposeFullText joins the introduction, every body reason and the
// conclusion with blank lines.
func ComposeFullText(introduction string, body []BodyPart, conclusion string) string {
	reasons := make([]string, len(body))
	for i, part := range body {
		reasons[i] = part.Reason
	}
	return introduction + "\n\n" + strings.Join(reasons, "\n\n") + "\n\n" + conclusion
}

// FirstParagraph returns the text before the first blank line.
func FirstParagraph(text string) string {
	paragraph, _, _ := strings.Cut(text, "\n\n")
	return paragraph
}

// TopicSuggestions with Degraded set carries a message for the writer in
// RefinedTopic, not a topic.
type TopicSuggestions struct {
	RefinedTopic string   `json:"refined_topic"`
	Suggestions  []string `json:"suggestions"`
	Degraded     bool     `json:"degraded,omitempty"`
}
