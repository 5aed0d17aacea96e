package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FlomaWen/party-game/internal/domain"
)

// Store is the backing question store a cache wraps.
type Store interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, imageURL, prompt, answer string) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int) (bool, error)
	DeleteAll(ctx context.Context) error
}

// QuestionCache caches the question list with a TTL to avoid hitting the
// store on every reload. Writes pass through and invalidate, so the
// coordinator's reload at game start observes administrative edits.
type QuestionCache struct {
	store Store
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu        sync.RWMutex
	cached    []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(store Store, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if c.cached != nil && c.expiresAt.After(now) {
		questions := c.cached
		c.mu.RUnlock()
		return questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("questions", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.cached != nil && c.expiresAt.After(now) {
			questions := c.cached
			c.mu.RUnlock()
			return questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.store.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}

		c.mu.Lock()
		c.cached = questions
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) CreateQuestion(ctx context.Context, imageURL, prompt, answer string) (domain.Question, error) {
	q, err := c.store.CreateQuestion(ctx, imageURL, prompt, answer)
	if err != nil {
		return domain.Question{}, err
	}
	c.Invalidate()
	return q, nil
}

func (c *QuestionCache) DeleteQuestion(ctx context.Context, id int) (bool, error) {
	deleted, err := c.store.DeleteQuestion(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		c.Invalidate()
	}
	return deleted, nil
}

func (c *QuestionCache) DeleteAll(ctx context.Context) error {
	if err := c.store.DeleteAll(ctx); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate drops the cached list so the next read hits the store.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
