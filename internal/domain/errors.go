package domain

import "errors"

var (
	// ErrQuestionNotFound indicates a question ID is not in the store.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions is returned when the store holds no unused questions.
	ErrNoQuestions = errors.New("no unused questions remain")
)
