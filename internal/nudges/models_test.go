package nudges

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"dialer-platform/internal/calls"
)

func TestTrackingFor(t *testing.T) {
	now := time.Now()
	cases := []struct {
		d       calls.Disposition
		engaged bool
		paused  bool
		reason  string
	}{
		{calls.DispositionInterested, true, false, ""},
		{calls.DispositionCallbackRequested, true, false, ""},
		{calls.DispositionAppointmentSet, true, true, "appointment booked"},
		{calls.DispositionDNC, false, true, "lead requested do not call"},
		{calls.DispositionNotInterested, false, true, "lead not interested"},
		{calls.DispositionVoicemail, false, false, ""},
	}
	for _, tc := range cases {
		tr := TrackingFor("u1", "L1", tc.d, now)
		if tr.IsEngaged != tc.engaged || tr.SequencePaused != tc.paused || tr.PauseReason != tc.reason {
			t.Fatalf("%s: got %+v", tc.d, tr)
		}
		if !tr.LastAIContactAt.Equal(now) {
			t.Fatalf("%s: last_ai_contact_at not refreshed", tc.d)
		}
	}
}

func TestMemoryRepo_UpsertIsKeyedByLead(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Upsert(ctx, TrackingFor("u1", "L1", calls.DispositionDNC, time.Now()))
	_ = repo.Upsert(ctx, TrackingFor("u1", "L1", calls.DispositionInterested, time.Now()))
	if repo.Len() != 1 {
		t.Fatalf("expected one row, got %d", repo.Len())
	}
	tr, _ := repo.Get("L1")
	if tr.SequencePaused || !tr.IsEngaged {
		t.Fatalf("expected latest state, got %+v", tr)
	}
}

func TestPostgresRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (lead_id)")).
		WithArgs("L1", "u1", true, true, sqlmock.AnyArg(), now, "appointment_set").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresRepository(db).Upsert(context.Background(), TrackingFor("u1", "L1", calls.DispositionAppointmentSet, now)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
