package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"livequiz-service/internal/domain"
)

// BankLoader fetches saved quizzes from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
}

// BankRepository caches normalized saved quizzes in Redis as a JSON blob per
// quiz (SET livequiz:bank:{quizID}) and falls back to a loader on cache miss.
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankRepository(client *redis.Client, loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	key := r.key(quizID)

	if questions, ok := r.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *BankRepository) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (r *BankRepository) key(quizID string) string {
	return "livequiz:bank:" + quizID
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
