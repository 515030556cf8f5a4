package workflow

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func seed(current string) *MemoryRepo {
	repo := NewMemoryRepo()
	repo.AddSteps(
		Step{ID: "s3", WorkflowID: "wf", StepNumber: 3, Type: StepSMS},
		Step{ID: "s1", WorkflowID: "wf", StepNumber: 1, Type: StepCall},
		Step{ID: "s2", WorkflowID: "wf", StepNumber: 2, Type: StepWait, Config: StepConfig{DelayMinutes: 90}},
		Step{ID: "s4", WorkflowID: "wf", StepNumber: 4, Type: StepCall},
	)
	repo.PutProgress(Progress{ID: "p1", LeadID: "L1", UserID: "u1", WorkflowID: "wf", CurrentStepID: current, Status: StatusActive})
	return repo
}

func TestAdvance_CallStepMovesToNext(t *testing.T) {
	repo := seed("s1")
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	res, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", now)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Action != ActionAdvanced {
		t.Fatalf("expected advanced, got %+v", res)
	}
	p, _ := repo.GetProgress("p1")
	if p.CurrentStepID != "s2" || p.Status != StatusActive {
		t.Fatalf("unexpected progress %+v", p)
	}
	if p.NextActionAt == nil || !p.NextActionAt.Equal(now.Add(90*time.Minute)) {
		t.Fatalf("unexpected next_action_at %v", p.NextActionAt)
	}
	if p.LastActionAt == nil || !p.LastActionAt.Equal(now) {
		t.Fatalf("unexpected last_action_at %v", p.LastActionAt)
	}
}

func TestAdvance_NonCallStepIsNoop(t *testing.T) {
	repo := seed("s2")
	before, _ := repo.GetProgress("p1")

	res, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", time.Now())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Action != ActionNone {
		t.Fatalf("expected no-op, got %+v", res)
	}
	after, _ := repo.GetProgress("p1")
	if after.CurrentStepID != before.CurrentStepID || after.NextActionAt != nil || after.LastActionAt != nil {
		t.Fatalf("progress changed: %+v", after)
	}
}

func TestAdvance_LastStepCompletes(t *testing.T) {
	repo := seed("s4")
	now := time.Now()

	res, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", now)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Action != ActionCompleted {
		t.Fatalf("expected completed, got %+v", res)
	}
	p, _ := repo.GetProgress("p1")
	if p.Status != StatusCompleted || p.CompletedAt == nil || !p.CompletedAt.Equal(now) {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestAdvance_NoActiveWorkflow(t *testing.T) {
	repo := NewMemoryRepo()
	res, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", time.Now())
	if err != nil || res.Action != ActionNone {
		t.Fatalf("expected no-op, got %+v err=%v", res, err)
	}
}

func TestAdvance_OtherUsersProgressIgnored(t *testing.T) {
	repo := seed("s1")
	res, err := NewAdvancer(nil).Advance(context.Background(), repo, "u2", "L1", time.Now())
	if err != nil || res.Action != ActionNone {
		t.Fatalf("expected no-op, got %+v err=%v", res, err)
	}
}

func TestAdvance_MultipleActiveRowsRejected(t *testing.T) {
	repo := seed("s1")
	repo.PutProgress(Progress{ID: "p2", LeadID: "L1", UserID: "u1", WorkflowID: "wf", CurrentStepID: "s1", Status: StatusActive})
	_, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", time.Now())
	if !errors.Is(err, ErrMultipleActiveProgress) {
		t.Fatalf("expected ErrMultipleActiveProgress, got %v", err)
	}
}

func TestAdvance_UnknownCurrentStep(t *testing.T) {
	repo := seed("gone")
	_, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", time.Now())
	if !errors.Is(err, ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound, got %v", err)
	}
}

func TestPostgresRepository_LockAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("L1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lead_id", "user_id", "workflow_id", "current_step_id", "status", "next_action_at", "last_action_at", "completed_at"}).
			AddRow("p1", "L1", "u1", "wf", "s1", "active", nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_steps")).
		WithArgs("wf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workflow_id", "step_number", "step_type", "step_config"}).
			AddRow("s1", "wf", 1, "call", []byte(`{}`)).
			AddRow("s2", "wf", 2, "wait", []byte(`{"delay_hours":2,"time_of_day":"09:00"}`)))

	repo := NewPostgresRepository(db)
	p, ok, err := repo.LockActiveProgress(context.Background(), "u1", "L1")
	if err != nil || !ok || p.ID != "p1" {
		t.Fatalf("lock: p=%+v ok=%v err=%v", p, ok, err)
	}
	steps, err := repo.ListSteps(context.Background(), "wf")
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 2 || steps[1].Config.DelayHours != 2 || steps[1].Config.TimeOfDay != "09:00" {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepository_LockDetectsDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	cols := []string{"id", "lead_id", "user_id", "workflow_id", "current_step_id", "status", "next_action_at", "last_action_at", "completed_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("p1", "L1", "u1", "wf", "s1", "active", nil, nil, nil).
			AddRow("p2", "L1", "u1", "wf", "s1", "active", nil, nil, nil))

	_, _, err = NewPostgresRepository(db).LockActiveProgress(context.Background(), "u1", "L1")
	if !errors.Is(err, ErrMultipleActiveProgress) {
		t.Fatalf("expected ErrMultipleActiveProgress, got %v", err)
	}
}

func TestAdvance_StepTypeCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepo()
	repo.AddSteps(
		Step{ID: "s1", WorkflowID: "wf", StepNumber: 1, Type: "Call"},
		Step{ID: "s2", WorkflowID: "wf", StepNumber: 2, Type: " Wait", Config: StepConfig{DelayDays: 2}},
	)
	repo.PutProgress(Progress{ID: "p1", LeadID: "L1", UserID: "u1", WorkflowID: "wf", CurrentStepID: "s1", Status: StatusActive})
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	res, err := NewAdvancer(nil).Advance(context.Background(), repo, "u1", "L1", now)
	if err != nil || res.Action != ActionAdvanced {
		t.Fatalf("expected advanced, got %+v err=%v", res, err)
	}
	p, _ := repo.GetProgress("p1")
	if p.NextActionAt == nil || !p.NextActionAt.Equal(now.Add(48*time.Hour)) {
		t.Fatalf("expected wait delay applied, got %v", p.NextActionAt)
	}
}

func TestAdvance_NullCurrentStepIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("L1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lead_id", "user_id", "workflow_id", "current_step_id", "status", "next_action_at", "last_action_at", "completed_at"}).
			AddRow("p1", "L1", "u1", "wf", nil, "active", nil, nil, nil))

	res, err := NewAdvancer(nil).Advance(context.Background(), NewPostgresRepository(db), "u1", "L1", time.Now())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Action != ActionNone {
		t.Fatalf("expected no-op, got %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepository_ListStepsNormalizesType(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_steps")).
		WithArgs("wf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workflow_id", "step_number", "step_type", "step_config"}).
			AddRow("s1", "wf", 1, "CALL", []byte(`{}`)).
			AddRow("s2", "wf", 2, " Wait ", []byte(`{"delay_days":2}`)))

	steps, err := NewPostgresRepository(db).ListSteps(context.Background(), "wf")
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if steps[0].Type != StepCall || steps[1].Type != StepWait {
		t.Fatalf("unexpected types %q %q", steps[0].Type, steps[1].Type)
	}
}
