package models

import "time"

// Data Transfer Objects

type CreateEssayRequest struct {
	EssayData
	Student Student `json:"student"`
}

type UpdateEssayRequest struct {
	EssayData
}

type CreateCommentRequest struct {
	EssayID    string   `json:"-"`
	AuthorName string   `json:"author_name" validate:"notblank,max=50"`
	Content    string   `json:"content" validate:"notblank,max=1000"`
	Author     *Student `json:"author,omitempty"`
}

type TeacherLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RefineTopicRequest struct {
	Topic     string `json:"topic" validate:"notblank,max=200"`
	ViewerKey string `json:"viewer_key,omitempty"`
}

// WritingProgress is a snapshot of an unfinished essay sent along with a question to the assistant.
type WritingProgress struct {
	Topic        string     `json:"topic"`
	Introduction string     `json:"introduction"`
	Body         []BodyPart `json:"body"`
	Conclusion   string     `json:"conclusion"`
}

type AdviceRequest struct {
	Progress  WritingProgress `json:"progress"`
	Question  string          `json:"question" validate:"notblank,max=500"`
	ViewerKey string          `json:"viewer_key,omitempty"`
}

type AdviceResponse struct {
	Reply string `json:"reply"`
}

type EssaysResponse struct {
	Essays []Essay `json:"essays"`
	Total  int     `json:"total"`
}
