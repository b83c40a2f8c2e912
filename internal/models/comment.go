package models

import "time"

type Comment struct {
	ID         string    `json:"id" db:"id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	EssayID    string    `json:"essay_id" db:"essay_id"`
	AuthorName string    `json:"author_name" db:"author_name"`
	Content    string    `json:"content" db:"content"`
	Author     *Student  `json:"author,omitempty"`
}
