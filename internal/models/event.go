package models

type EssaySubmittedEvent struct {
	EssayID     string `json:"essay_id"`
	Topic       string `json:"topic"`
	AuthorName  string `json:"author_name"`
	AuthorGrade string `json:"author_grade"`
	AuthorClass string `json:"author_class"`
	Characters  int    `json:"characters"`
	Timestamp   int64  `json:"timestamp"`
}

type EssayDeletedEvent struct {
	EssayID   string `json:"essay_id"`
	ByTeacher bool   `json:"by_teacher"`
	Timestamp int64  `json:"timestamp"`
}
