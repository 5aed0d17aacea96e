package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/FlomaWen/party-game/internal/domain"
)

const questionsKey = "trivia:questions"

// Store is the backing question store a cache wraps.
type Store interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, imageURL, prompt, answer string) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int) (bool, error)
	DeleteAll(ctx context.Context) error
}

// QuestionCache caches the question list as a JSON blob in Redis and falls
// back to the store on cache miss. Writes pass through and invalidate the
// Redis key so subsequent reloads see fresh data.
type QuestionCache struct {
	client *redis.Client
	store  Store
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, store Store, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := c.fromCache(ctx); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if questions, ok := c.fromCache(ctx); ok {
			return questions, nil
		}

		questions, err := c.store.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}

		if data, err := json.Marshal(questions); err == nil {
			// best-effort cache fill
			_ = c.client.Set(ctx, questionsKey, data, c.ttlWithJitter()).Err()
		}
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
	c.Invalidate(ctx)
	return q, nil
}

func (c *QuestionCache) DeleteQuestion(ctx context.Context, id int) (bool, error) {
	deleted, err := c.store.DeleteQuestion(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		c.Invalidate(ctx)
	}
	return deleted, nil
}

func (c *QuestionCache) DeleteAll(ctx context.Context) error {
	if err := c.store.DeleteAll(ctx); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached list so the next read hits the store.
func (c *QuestionCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, questionsKey).Err()
}

func (c *QuestionCache) fromCache(ctx context.Context) ([]domain.Question, bool) {
	data, err := c.client.Get(ctx, questionsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
