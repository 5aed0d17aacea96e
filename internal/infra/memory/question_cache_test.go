package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FlomaWen/party-game/internal/domain"
)

// countingStore wraps a real store and counts ListQuestions calls.
type countingStore struct {
	*QuestionStore
	lists atomic.Int64
	err   error
}

func (s *countingStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	s.lists.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.QuestionStore.ListQuestions(ctx)
}

func seedQuestions(n int) []domain.Question {
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{ImageURL: "img", Prompt: "p", Answer: "a"})
	}
	return questions
}

func TestCacheServesFromMemoryUntilExpiry(t *testing.T) {
	store := &countingStore{QuestionStore: NewQuestionStore(seedQuestions(2))}
	cache := NewQuestionCache(store, time.Minute)

	now := time.Unix(1000, 0)
	cache.clock = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		questions, err := cache.ListQuestions(ctx)
		if err != nil {
			t.Fatalf("ListQuestions: %v", err)
		}
		if len(questions) != 2 {
			t.Fatalf("expected 2 questions, got %d", len(questions))
		}
	}
	if got := store.lists.Load(); got != 1 {
		t.Fatalf("expected 1 store read, got %d", got)
	}

	// Past the TTL (plus worst-case jitter) the store is read again.
	now = now.Add(2 * time.Minute)
	if _, err := cache.ListQuestions(ctx); err != nil {
		t.Fatalf("ListQuestions after expiry: %v", err)
	}
	if got := store.lists.Load(); got != 2 {
		t.Fatalf("expected 2 store reads after expiry, got %d", got)
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	store := &countingStore{QuestionStore: NewQuestionStore(seedQuestions(1))}
	cache := NewQuestionCache(store, time.Minute)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.ListQuestions(ctx); err != nil {
				t.Errorf("ListQuestions: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.lists.Load(); got > 2 {
		t.Fatalf("expected coalesced reads, store was hit %d times", got)
	}
}

func TestWritesInvalidateCache(t *testing.T) {
	store := &countingStore{QuestionStore: NewQuestionStore(seedQuestions(1))}
	cache := NewQuestionCache(store, time.Hour)
	ctx := context.Background()

	if _, err := cache.ListQuestions(ctx); err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}

	created, err := cache.CreateQuestion(ctx, "img", "new prompt", "new answer")
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	questions, err := cache.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("ListQuestions after create: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected create to be visible immediately, got %d questions", len(questions))
	}

	ok, err := cache.DeleteQuestion(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteQuestion = %v, %v", ok, err)
	}
	questions, err = cache.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("ListQuestions after delete: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected delete to be visible immediately, got %d questions", len(questions))
	}

	if err := cache.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	questions, err = cache.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("ListQuestions after delete all: %v", err)
	}
	if len(questions) != 0 {
		t.Fatalf("expected empty list, got %d questions", len(questions))
	}
}

func TestDeleteMissDoesNotInvalidate(t *testing.T) {
	store := &countingStore{QuestionStore: NewQuestionStore(seedQuestions(1))}
	cache := NewQuestionCache(store, time.Hour)
	ctx := context.Background()

	if _, err := cache.ListQuestions(ctx); err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if ok, err := cache.DeleteQuestion(ctx, 99); err != nil || ok {
		t.Fatalf("DeleteQuestion(99) = %v, %v", ok, err)
	}
	if _, err := cache.ListQuestions(ctx); err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if got := store.lists.Load(); got != 1 {
		t.Fatalf("no-op delete should keep the cache, store was hit %d times", got)
	}
}

func TestStoreErrorIsNotCached(t *testing.T) {
	store := &countingStore{QuestionStore: NewQuestionStore(seedQuestions(1))}
	cache := NewQuestionCache(store, time.Hour)
	ctx := context.Background()

	store.err = errors.New("store down")
	if _, err := cache.ListQuestions(ctx); err == nil {
		t.Fatalf("expected error from failing store")
	}

	store.err = nil
	questions, err := cache.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("ListQuestions after recovery: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question after recovery, got %d", len(questions))
	}
}
