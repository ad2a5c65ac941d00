package domain

import "errors"

// Curriculum errors
var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrModuleNotFound = errors.New("module not found")
	ErrLessonLocked   = errors.New("lesson is locked")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Practice errors
var (
	ErrNoActiveLesson = errors.New("no active lesson")
	ErrSuperseded     = errors.New("superseded by a newer run")
)

// General errors
var (
	ErrInvalidInput = errors.New("invalid input")
)
