package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"dialer-platform/pkg/utils"
)

// Service posts usage and top-ups to the credit ledger.
//
// Money invariants:
// - No balance updates without a ledger entry
// - Ledger is append-only (immutable)
// - All postings run in a DB transaction with the balance row locked
//
// Usage charges may drive the balance negative: the call has already happened.
type Service struct {
	db               *sql.DB
	creditsPerMinute int64
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB, creditsPerMinute int64) *Service {
	if creditsPerMinute <= 0 {
		creditsPerMinute = 1
	}
	return &Service{db: db, creditsPerMinute: creditsPerMinute, clock: time.Now}
}

var (
	ErrNotFound        = errors.New("credits: not found")
	ErrInvalidArgument = errors.New("credits: invalid argument")
)

// TopUpRequest is an admin or payment-driven credit.
type TopUpRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
	ExternalRef    string `json:"external_ref,omitempty"`
	Reason         string `json:"reason"`
	AdminUserID    string `json:"-"`
	AdminRole      string `json:"-"`
}

// BillableMinutes rounds a call up to whole minutes.
func BillableMinutes(durationSeconds int) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64((durationSeconds + 59) / 60)
}

// CallIdempotencyKey is the ledger key used for a call's usage charge.
func CallIdempotencyKey(providerCallID string) string {
	return "call:" + providerCallID
}

func (s *Service) GetBalance(ctx context.Context, userID string) (Balance, error) {
	if userID == "" {
		return Balance{}, ErrInvalidArgument
	}
	b, err := getBalance(ctx, s.db, userID)
	if errors.Is(err, ErrNotFound) {
		return Balance{UserID: userID}, nil
	}
	return b, err
}

// ChargeCall debits the usage of one call. Replays of the same call return the
// original entry with Duplicate set. Zero-length calls are not charged.
func (s *Service) ChargeCall(ctx context.Context, userID, providerCallID string, durationSeconds int) (Charge, error) {
	if userID == "" || providerCallID == "" {
		return Charge{}, ErrInvalidArgument
	}
	minutes := BillableMinutes(durationSeconds)
	if minutes == 0 {
		return Charge{}, nil
	}
	amount := minutes * s.creditsPerMinute
	meta, err := json.Marshal(map[string]any{"minutes": minutes, "duration_seconds": durationSeconds})
	if err != nil {
		return Charge{}, err
	}

	entry, bal, dup, err := s.post(ctx, LedgerEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           EntryTypeCallUsage,
		Amount:         -amount,
		ExternalRef:    providerCallID,
		IdempotencyKey: CallIdempotencyKey(providerCallID),
		Metadata:       string(meta),
	})
	if err != nil {
		return Charge{}, fmt.Errorf("credits: charge call %s: %w", providerCallID, err)
	}
	return Charge{Minutes: minutes, Amount: amount, Entry: entry, Balance: bal, Duplicate: dup}, nil
}

// TopUp credits a user's balance. Admin top-ups carry the acting admin in metadata.
func (s *Service) TopUp(ctx context.Context, userID string, req TopUpRequest) (LedgerEntry, Balance, error) {
	if userID == "" || req.Amount <= 0 || strings.TrimSpace(req.IdempotencyKey) == "" {
		return LedgerEntry{}, Balance{}, ErrInvalidArgument
	}
	typ := EntryTypeTopUp
	metadata := ""
	if req.AdminUserID != "" {
		if req.AdminRole == "" || strings.TrimSpace(req.Reason) == "" {
			return LedgerEntry{}, Balance{}, ErrInvalidArgument
		}
		typ = EntryTypeAdjustment
		b, err := json.Marshal(map[string]string{
			"admin_user_id": req.AdminUserID,
			"admin_role":    req.AdminRole,
			"reason":        req.Reason,
		})
		if err != nil {
			return LedgerEntry{}, Balance{}, err
		}
		metadata = string(b)
	}

	entry, bal, _, err := s.post(ctx, LedgerEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           typ,
		Amount:         req.Amount,
		ExternalRef:    req.ExternalRef,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       metadata,
	})
	return entry, bal, err
}

func (s *Service) post(ctx context.Context, e LedgerEntry) (LedgerEntry, Balance, bool, error) {
	now := s.clock().UTC()
	e.CreatedAt = now

	var (
		outEntry LedgerEntry
		outBal   Balance
		dup      bool
	)
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureBalanceRow(ctx, tx, e.UserID, now); err != nil {
			return err
		}
		b, err := lockBalance(ctx, tx, e.UserID)
		if err != nil {
			return err
		}

		if existing, ok, err := findLedgerByIdempotency(ctx, tx, e.UserID, e.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outEntry, outBal, dup = existing, b, true
			return nil
		}

		if err := insertLedger(ctx, tx, e); err != nil {
			return err
		}
		nb, err := applyBalanceDelta(ctx, tx, e.UserID, e.Amount, now)
		if err != nil {
			return err
		}
		outEntry, outBal = e, nb
		return nil
	})
	return outEntry, outBal, dup, err
}
