package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/calls"
)

func window(now time.Time) TimeRange {
	return TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
}

func TestReporting_UserIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Add("u1", CallRow{ProviderCallID: "c1", CampaignID: "camp", Outcome: calls.DispositionContacted, DurationSeconds: 30, CreatedAt: now})
	repo.Add("u2", CallRow{ProviderCallID: "c2", CampaignID: "camp", Outcome: calls.DispositionContacted, DurationSeconds: 50, CreatedAt: now})
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u1", Range: window(now)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 || out.TotalDurationSeconds != 30 {
		t.Fatalf("expected only u1 calls, got %+v", out)
	}
}

func TestReporting_CallsSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Add("u",
		CallRow{ProviderCallID: "c1", CampaignID: "a", Outcome: calls.DispositionVoicemail, DurationSeconds: 20, RecordingURL: "https://r/1", CreatedAt: now},
		CallRow{ProviderCallID: "c2", CampaignID: "a", Outcome: calls.DispositionVoicemail, DurationSeconds: 40, CreatedAt: now},
		CallRow{ProviderCallID: "c3", CampaignID: "b", Outcome: calls.DispositionAppointmentSet, DurationSeconds: 180, CreatedAt: now},
		CallRow{ProviderCallID: "c4", CampaignID: "a", Outcome: "garbage", CreatedAt: now},
		CallRow{ProviderCallID: "old", CampaignID: "a", Outcome: calls.DispositionBusy, CreatedAt: now.Add(-48 * time.Hour)},
	)
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u", Range: window(now), CampaignID: "a"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 {
		t.Fatalf("expected 3 calls, got %d", out.TotalCalls)
	}
	if out.ByDisposition[calls.DispositionVoicemail] != 2 || out.ByDisposition[calls.DispositionUnknown] != 1 {
		t.Fatalf("unexpected breakdown: %v", out.ByDisposition)
	}
	if out.TotalDurationSeconds != 60 || out.AverageDurationSeconds != 20 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.RecordedCalls != 1 {
		t.Fatalf("expected 1 recorded call, got %d", out.RecordedCalls)
	}
}

func TestReporting_ConversionMetrics(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Add("u",
		CallRow{ProviderCallID: "c1", CampaignID: "camp", Outcome: calls.DispositionAppointmentSet, CreatedAt: now},
		CallRow{ProviderCallID: "c2", CampaignID: "camp", Outcome: calls.DispositionInterested, CreatedAt: now},
		CallRow{ProviderCallID: "c3", CampaignID: "camp", Outcome: calls.DispositionNoAnswer, CreatedAt: now},
		CallRow{ProviderCallID: "c4", CampaignID: "camp", Outcome: calls.DispositionVoicemail, CreatedAt: now},
	)

	svc := NewService(repo)
	m, err := svc.ConversionMetrics(context.Background(), ConversionMetricsRequest{UserID: "u", CampaignID: "camp", Range: window(now)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if m.CallsAttempted != 4 || m.CallsConnected != 2 || m.Conversions != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.ConnectionRate != 0.5 || m.ConversionRate != 0.25 {
		t.Fatalf("unexpected rates: %+v", m)
	}
}

func TestReporting_InvalidRequests(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: window(now)}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing user: got %v", err)
	}
	if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u", Range: TimeRange{From: now, To: now}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty range: got %v", err)
	}
	if _, err := svc.ConversionMetrics(context.Background(), ConversionMetricsRequest{UserID: "u", Range: window(now)}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing campaign: got %v", err)
	}
}
