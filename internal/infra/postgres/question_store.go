package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/FlomaWen/party-game/internal/domain"
)

// QuestionStore persists questions in the Postgres questions table.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, image_url, prompt, answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.ImageURL, &q.Prompt, &q.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

func (s *QuestionStore) CreateQuestion(ctx context.Context, imageURL, prompt, answer string) (domain.Question, error) {
	q := domain.Question{ImageURL: imageURL, Prompt: prompt, Answer: answer}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (image_url, prompt, answer) VALUES ($1, $2, $3) RETURNING id`,
		imageURL, prompt, answer,
	).Scan(&q.ID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, id int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *QuestionStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("delete all questions: %w", err)
	}
	return nil
}
