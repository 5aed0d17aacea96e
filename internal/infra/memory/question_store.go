package memory

import (
	"context"
	"sync"

	"github.com/FlomaWen/party-game/internal/domain"
)

// QuestionStore is an in-memory question store, useful for tests and demos.
type QuestionStore struct {
	mu        sync.Mutex
	questions []domain.Question
	nextID    int
}

func NewQuestionStore(seed []domain.Question) *QuestionStore {
	s := &QuestionStore{nextID: 1}
	for _, q := range seed {
		if q.ID == 0 {
			q.ID = s.nextID
		}
		if q.ID >= s.nextID {
			s.nextID = q.ID + 1
		}
		s.questions = append(s.questions, q)
	}
	return s
}

func (s *QuestionStore) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out, nil
}

func (s *QuestionStore) CreateQuestion(_ context.Context, imageURL, prompt, answer string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := domain.Question{ID: s.nextID, ImageURL: imageURL, Prompt: prompt, Answer: answer}
	s.nextID++
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *QuestionStore) DeleteQuestion(_ context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.questions {
		if q.ID == id {
			s.questions = append(s.questions[:i], s.questions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *QuestionStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = nil
	return nil
}
