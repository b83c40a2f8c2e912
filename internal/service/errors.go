package service

import "errors"

var (
	ErrEssayNotFound     = errors.New("essay not found")
	ErrInvalidEditCode   = errors.New("invalid edit code")
	ErrEditCodeExhausted = errors.New("could not allocate a unique edit code")
	ErrInvalidPassword   = errors.New("invalid teacher password")
	ErrTeacherAuthOff    = errors.New("teacher login is not configured")
	ErrInvalidToken      = errors.New("invalid or expired token")
)
