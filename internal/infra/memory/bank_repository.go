package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"livequiz-service/internal/domain"
)

// BankLoader fetches saved quizzes from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
}

// BankRepository caches saved quizzes with TTL so repeated session creates
// from the same quiz do not hit the backing store every time.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *BankRepository) GetQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// StaticBankLoader is a loader backed by an in-memory map (tests/demos).
type StaticBankLoader struct {
	quizzes map[string][]domain.Question
}

func NewStaticBankLoader(quizzes map[string][]domain.Question) *StaticBankLoader {
	return &StaticBankLoader{quizzes: quizzes}
}

func (l *StaticBankLoader) LoadQuiz(_ context.Context, quizID string) ([]domain.Question, error) {
	if questions, ok := l.quizzes[quizID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuizNotFound
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
