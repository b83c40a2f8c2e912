package models

import (
	"fmt"
	"strings"
	"unicode"
)

const DefaultGrade = "6"

// Student is the lightweight identity a pupil enters at the start of a session.
type Student struct {
	Grade       string `json:"grade" validate:"max=10"`
	ClassNumber string `json:"class_number" validate:"notblank,max=10"`
	StudentID   string `json:"student_id" validate:"notblank,max=10"`
	Name        string `json:"name" validate:"notblank,max=50"`
}

func (s Student) Complete() bool {
	return strings.TrimSpace(s.ClassNumber) != "" &&
		strings.TrimSpace(s.StudentID) != "" &&
		strings.TrimSpace(s.Name) != ""
}

// Key identifies the student for per-viewer state such as liked essays.
func (s Student) Key() string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s.Name)
	return fmt.Sprintf("student-%s-%s-%s-%s", s.Grade, s.ClassNumber, s.StudentID, name)
}

func (s Student) DisplayName() string {
	return fmt.Sprintf("%s학년 %s반 %s번 %s", s.Grade, s.ClassNumber, s.StudentID, s.Name)
}
