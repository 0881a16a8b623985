package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// BankLoader loads saved quiz JSONB from Postgres. Stored documents come from
// several frontend versions, so the raw shape is normalized on the way out.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM saved_quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load saved quiz: %w", err)
	}
	questions, err := domain.ParseSavedQuiz(raw)
	if err != nil {
		return nil, fmt.Errorf("saved quiz %s: %w", quizID, err)
	}
	return questions, nil
}
