package phonenumbers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"dialer-platform/pkg/utils"
)

var ErrNumberNotFound = errors.New("phonenumbers: number not owned by user")

// UsageNumber picks the user's own number for a call: the caller for
// outbound calls, the callee for inbound ones.
func UsageNumber(direction, from, to string) string {
	if strings.EqualFold(strings.TrimSpace(direction), "inbound") {
		return to
	}
	return from
}

type Repository interface {
	IncrementDailyCalls(ctx context.Context, userID, number string) error
}

type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IncrementDailyCalls bumps the counter in a single statement. Resetting the
// counter is handled by a separate daily job.
func (r *PostgresRepository) IncrementDailyCalls(ctx context.Context, userID, number string) error {
	const q = `
UPDATE phone_numbers
SET daily_calls = daily_calls + 1,
    updated_at  = now()
WHERE user_id = $1 AND phone_number = $2
`
	res, err := r.db.ExecContext(ctx, q, userID, number)
	if err != nil {
		return fmt.Errorf("phonenumbers: increment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("phonenumbers: increment: %w", err)
	}
	if n == 0 {
		return ErrNumberNotFound
	}
	return nil
}

type numberKey struct{ user, number string }

type MemoryRepo struct {
	mu     sync.Mutex
	counts map[numberKey]int
}

// NewMemoryRepo registers the given numbers for userID with a zero count.
func NewMemoryRepo(userID string, numbers ...string) *MemoryRepo {
	r := &MemoryRepo{counts: map[numberKey]int{}}
	for _, n := range numbers {
		r.counts[numberKey{userID, n}] = 0
	}
	return r
}

func (r *MemoryRepo) IncrementDailyCalls(ctx context.Context, userID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := numberKey{userID, number}
	if _, ok := r.counts[k]; !ok {
		return ErrNumberNotFound
	}
	r.counts[k]++
	return nil
}

func (r *MemoryRepo) DailyCalls(userID, number string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[numberKey{userID, number}]
}
