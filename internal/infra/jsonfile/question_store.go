package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/FlomaWen/party-game/internal/domain"
)

// QuestionStore keeps questions in a local JSON file. It is the fallback
// store when no Postgres URL is configured; IDs are assigned as max+1 so
// they stay stable and ascending like the database does.
type QuestionStore struct {
	mu   sync.Mutex
	path string
}

func NewQuestionStore(path string) *QuestionStore {
	return &QuestionStore{path: path}
}

func (s *QuestionStore) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *QuestionStore) CreateQuestion(_ context.Context, imageURL, prompt, answer string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.readLocked()
	if err != nil {
		return domain.Question{}, err
	}

	nextID := 1
	for _, q := range questions {
		if q.ID >= nextID {
			nextID = q.ID + 1
		}
	}
	question := domain.Question{ID: nextID, ImageURL: imageURL, Prompt: prompt, Answer: answer}
	questions = append(questions, question)

	if err := s.writeLocked(questions); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

func (s *QuestionStore) DeleteQuestion(_ context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.readLocked()
	if err != nil {
		return false, err
	}

	kept := questions[:0]
	found := false
	for _, q := range questions {
		if q.ID == id {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	if !found {
		return false, nil
	}
	return true, s.writeLocked(kept)
}

func (s *QuestionStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked([]domain.Question{})
}

func (s *QuestionStore) readLocked() ([]domain.Question, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}

	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse questions file: %w", err)
	}
	// Backfill ids missing from hand-edited files.
	for i := range questions {
		if questions[i].ID == 0 {
			questions[i].ID = i + 1
		}
	}
	return questions, nil
}

func (s *QuestionStore) writeLocked(questions []domain.Question) error {
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write questions file: %w", err)
	}
	return nil
}
