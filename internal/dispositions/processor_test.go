package dispositions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/credits"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/metrics"
	"dialer-platform/internal/nudges"
	"dialer-platform/internal/phonenumbers"
	"dialer-platform/internal/pipeline"
	"dialer-platform/internal/workflow"
)

type fakeCharger struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeCharger) ChargeCall(ctx context.Context, userID, callID string, secs int) (credits.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, secs)
	return credits.Charge{Minutes: credits.BillableMinutes(secs)}, f.err
}

type fakeInvoker struct {
	mu        sync.Mutex
	functions []string
	payloads  []DispatchPayload
}

func (f *fakeInvoker) Invoke(ctx context.Context, function string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.functions = append(f.functions, function)
	f.payloads = append(f.payloads, payload.(DispatchPayload))
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	acquired []string
	released int
	err      error
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.released++
		return nil
	}, nil
}

type failingUoW struct{ err error }

func (u failingUoW) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return u.err
}

type fixture struct {
	now      time.Time
	calls    *calls.MemoryRepo
	leads    *leads.MemoryRepo
	pipeline *pipeline.MemoryRepo
	nudges   *nudges.MemoryRepo
	workflow *workflow.MemoryRepo
	numbers  *phonenumbers.MemoryRepo
	charger  *fakeCharger
	invoker  *fakeInvoker
	locker   *fakeLocker
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:   time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		calls: calls.NewMemoryRepo(),
		leads: leads.NewMemoryRepo(leads.Lead{ID: "L1", UserID: "u1", Status: "new"}),
		pipeline: pipeline.NewMemoryRepo(
			pipeline.Board{ID: "b-contacted", UserID: "u1", Name: "Contacted", Position: 1},
			pipeline.Board{ID: "b-attempted", UserID: "u1", Name: "Attempted", Position: 2},
			pipeline.Board{ID: "b-booked", UserID: "u1", Name: "Appointment Booked", Position: 3},
		),
		nudges:   nudges.NewMemoryRepo(),
		workflow: workflow.NewMemoryRepo(),
		numbers:  phonenumbers.NewMemoryRepo("u1", "+15550001111"),
		charger:  &fakeCharger{},
		invoker:  &fakeInvoker{},
		locker:   &fakeLocker{},
	}
	f.workflow.AddSteps(
		workflow.Step{ID: "s1", WorkflowID: "wf", StepNumber: 1, Type: workflow.StepCall},
		workflow.Step{ID: "s2", WorkflowID: "wf", StepNumber: 2, Type: workflow.StepSMS},
	)
	f.workflow.PutProgress(workflow.Progress{ID: "p1", LeadID: "L1", UserID: "u1", WorkflowID: "wf", CurrentStepID: "s1", Status: workflow.StatusActive})

	uow := NewMemoryUnitOfWork(Repositories{
		Leads:    f.leads,
		Pipeline: f.pipeline,
		Nudges:   f.nudges,
		Workflow: f.workflow,
		Numbers:  f.numbers,
	})
	f.proc = NewProcessor(Deps{
		Calls:    f.calls,
		UoW:      uow,
		Advancer: workflow.NewAdvancer(time.UTC),
		Locker:   f.locker,
		Charger:  f.charger,
		Invoker:  f.invoker,
		Metrics:  metrics.NewDispositionMetrics(prometheus.NewRegistry()),
	})
	f.proc.clock = func() time.Time { return f.now }
	return f
}

func voicemailEvent(duration int) CallEvent {
	return CallEvent{
		Event:               EventCallEnded,
		ProviderCallID:      "call_1",
		Status:              "ended",
		DisconnectionReason: "machine_detected",
		From:                "+15550001111",
		To:                  "+15559998888",
		Direction:           "outbound",
		DurationSeconds:     duration,
		DurationKnown:       true,
		Transcript:          "Agent: Hi, leaving a message.",
		Metadata:            Metadata{LeadID: "L1", UserID: "u1", CampaignID: "camp1"},
	}
}

func TestProcess_VoicemailAdvancesWorkflow(t *testing.T) {
	f := newFixture(t)

	res, err := f.proc.Process(context.Background(), voicemailEvent(45))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	f.proc.Wait()

	if !res.Processed || res.Disposition != calls.DispositionVoicemail || res.LeadID != "L1" || res.Duplicate {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures %v", res.Failures)
	}

	l, _ := f.leads.Get("L1")
	if l.Status != leads.StatusContacted || l.NextCallbackAt != nil || l.DoNotCall {
		t.Fatalf("unexpected lead %+v", l)
	}

	p, _ := f.workflow.GetProgress("p1")
	if p.CurrentStepID != "s2" || p.NextActionAt == nil || !p.NextActionAt.Equal(f.now.Add(60*time.Second)) {
		t.Fatalf("unexpected progress %+v", p)
	}
	if res.Workflow != workflow.ActionAdvanced {
		t.Fatalf("expected workflow advanced, got %s", res.Workflow)
	}

	if got := f.numbers.DailyCalls("u1", "+15550001111"); got != 1 {
		t.Fatalf("expected daily_calls 1, got %d", got)
	}
	if ps := f.pipeline.Positions("L1"); len(ps) != 1 || ps[0].BoardID != "b-attempted" {
		t.Fatalf("unexpected positions %+v", ps)
	}
	if tr, ok := f.nudges.Get("L1"); !ok || tr.IsEngaged || tr.SequencePaused || !tr.LastAIContactAt.Equal(f.now) {
		t.Fatalf("unexpected nudge %+v", tr)
	}
	if len(f.charger.calls) != 1 || f.charger.calls[0] != 45 {
		t.Fatalf("unexpected charges %v", f.charger.calls)
	}
	if len(f.invoker.functions) != 2 ||
		f.invoker.functions[0] != dispatch.FunctionDispositionRouter ||
		f.invoker.functions[1] != dispatch.FunctionAnalyzeCallTranscript {
		t.Fatalf("unexpected dispatches %v", f.invoker.functions)
	}
	if f.invoker.payloads[0].Disposition != calls.DispositionVoicemail || f.invoker.payloads[0].CampaignID != "camp1" {
		t.Fatalf("unexpected payload %+v", f.invoker.payloads[0])
	}
	if len(f.locker.acquired) != 1 || f.locker.acquired[0] != "L1" || f.locker.released != 1 {
		t.Fatalf("lead lock not taken and released: %+v", f.locker)
	}

	recs := f.calls.Records()
	if len(recs) != 1 || recs[0].Outcome != calls.DispositionVoicemail || recs[0].Transcript == "" {
		t.Fatalf("unexpected call records %+v", recs)
	}
}

func TestProcess_ShortCallForcedToNoAnswer(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Process(context.Background(), voicemailEvent(5))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Disposition != calls.DispositionNoAnswer || res.Confidence != 1 {
		t.Fatalf("expected no_answer, got %+v", res)
	}
}

func TestProcess_ReplayAppliesEffectsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.proc.Process(ctx, voicemailEvent(45)); err != nil {
		t.Fatalf("first: %v", err)
	}
	res, err := f.proc.Process(ctx, voicemailEvent(45))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	f.proc.Wait()

	if !res.Duplicate || !res.Processed {
		t.Fatalf("expected duplicate result, got %+v", res)
	}
	if got := f.numbers.DailyCalls("u1", "+15550001111"); got != 1 {
		t.Fatalf("phone usage double counted: %d", got)
	}
	p, _ := f.workflow.GetProgress("p1")
	if p.CurrentStepID != "s2" || p.Status != workflow.StatusActive {
		t.Fatalf("workflow advanced twice: %+v", p)
	}
	if len(f.pipeline.Positions("L1")) != 1 {
		t.Fatalf("expected one pipeline position")
	}
	if len(f.charger.calls) != 1 {
		t.Fatalf("expected one charge, got %v", f.charger.calls)
	}
	if len(f.invoker.functions) != 2 {
		t.Fatalf("expected dispatch only for the first delivery, got %v", f.invoker.functions)
	}
	if len(f.calls.Records()) != 1 {
		t.Fatalf("expected exactly one call record")
	}
}

func TestProcess_StepFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.pipeline.FailWith = errors.New("pipeline down")

	res, err := f.proc.Process(context.Background(), voicemailEvent(45))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0] != "pipeline" {
		t.Fatalf("expected pipeline failure only, got %v", res.Failures)
	}
	if l, _ := f.leads.Get("L1"); l.Status != leads.StatusContacted {
		t.Fatalf("lead not updated: %+v", l)
	}
	if _, ok := f.nudges.Get("L1"); !ok {
		t.Fatalf("nudge not written")
	}
	if p, _ := f.workflow.GetProgress("p1"); p.CurrentStepID != "s2" {
		t.Fatalf("workflow not advanced: %+v", p)
	}
}

func TestProcess_UnknownLeadIsLoggedNotFatal(t *testing.T) {
	f := newFixture(t)
	ev := voicemailEvent(45)
	ev.Metadata.LeadID = "missing"

	res, err := f.proc.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0] != "lead" {
		t.Fatalf("expected lead failure, got %v", res.Failures)
	}
	if got := f.numbers.DailyCalls("u1", "+15550001111"); got != 1 {
		t.Fatalf("phone usage not counted")
	}
}

func TestProcess_AnalyzedEventDoesNotAdvanceOrCount(t *testing.T) {
	f := newFixture(t)
	yes := true
	ev := voicemailEvent(120)
	ev.Event = EventCallAnalyzed
	ev.Analysis = &calls.Analysis{
		UserSentiment:      "positive",
		CallSuccessful:     &yes,
		CustomAnalysisData: map[string]any{"appointment_set": true},
	}

	res, err := f.proc.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	f.proc.Wait()

	if res.Disposition != calls.DispositionAppointmentSet {
		t.Fatalf("expected appointment_set, got %s", res.Disposition)
	}
	if l, _ := f.leads.Get("L1"); l.Status != leads.StatusQualified {
		t.Fatalf("lead not qualified: %+v", l)
	}
	if tr, _ := f.nudges.Get("L1"); !tr.SequencePaused || tr.PauseReason != "appointment booked" {
		t.Fatalf("unexpected nudge %+v", tr)
	}
	if p, _ := f.workflow.GetProgress("p1"); p.CurrentStepID != "s1" {
		t.Fatalf("workflow must not advance on call_analyzed: %+v", p)
	}
	if got := f.numbers.DailyCalls("u1", "+15550001111"); got != 0 {
		t.Fatalf("phone usage must not be counted on call_analyzed")
	}
	if len(f.charger.calls) != 0 {
		t.Fatalf("call_analyzed must not charge")
	}
	if len(f.invoker.functions) != 1 || f.invoker.functions[0] != dispatch.FunctionDispositionRouter {
		t.Fatalf("unexpected dispatches %v", f.invoker.functions)
	}
}

func TestProcess_ResolvesOwnerFromPriorCall(t *testing.T) {
	f := newFixture(t)
	_ = f.calls.Upsert(context.Background(), calls.Record{ProviderCallID: "call_1", UserID: "u1", LeadID: "L1"})

	ev := voicemailEvent(45)
	ev.Metadata = Metadata{}
	res, err := f.proc.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.UserID != "u1" || res.LeadID != "L1" {
		t.Fatalf("owner not resolved: %+v", res)
	}
}

func TestProcess_UnresolvedUserRejected(t *testing.T) {
	f := newFixture(t)
	ev := voicemailEvent(45)
	ev.Metadata = Metadata{LeadID: "L1"}

	_, err := f.proc.Process(context.Background(), ev)
	if !errors.Is(err, ErrUnresolvedUser) {
		t.Fatalf("expected ErrUnresolvedUser, got %v", err)
	}
	if len(f.calls.Records()) != 0 {
		t.Fatalf("no writes expected before owner resolution")
	}
}

func TestProcess_MissingCallIDAndIgnoredEvents(t *testing.T) {
	f := newFixture(t)
	ev := voicemailEvent(45)
	ev.ProviderCallID = ""
	if _, err := f.proc.Process(context.Background(), ev); !errors.Is(err, ErrMissingCallID) {
		t.Fatalf("expected ErrMissingCallID, got %v", err)
	}

	ev = voicemailEvent(45)
	ev.Event = "call_started"
	res, err := f.proc.Process(context.Background(), ev)
	if err != nil || res.Processed {
		t.Fatalf("expected unprocessed ack, got %+v err=%v", res, err)
	}
}

func TestProcess_LockFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.locker.err = errors.New("redis down")

	res, err := f.proc.Process(context.Background(), voicemailEvent(45))
	if err != nil || res.Workflow != workflow.ActionAdvanced {
		t.Fatalf("expected processing to continue, got %+v err=%v", res, err)
	}
}

func TestProcess_TransactionFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.proc.d.UoW = failingUoW{err: errors.New("connection reset")}

	if _, err := f.proc.Process(context.Background(), voicemailEvent(45)); err == nil {
		t.Fatalf("expected error")
	}
	if len(f.charger.calls) != 0 {
		t.Fatalf("must not charge when nothing was applied")
	}
}

func TestCallEvent_DurationFromTimestamps(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(42*time.Second + 900*time.Millisecond)
	ev := CallEvent{StartedAt: &start, EndedAt: &end}
	if secs, ok := ev.Duration(); !ok || secs != 42 {
		t.Fatalf("got %d %v", secs, ok)
	}
	if _, ok := (CallEvent{}).Duration(); ok {
		t.Fatalf("duration should be unknown")
	}
}

func TestCallEvent_TranscriptPrefersFlatText(t *testing.T) {
	ev := CallEvent{Transcript: "flat", Turns: []calls.TranscriptTurn{{Role: "agent", Content: "turn"}}}
	if ev.TranscriptText() != "flat" {
		t.Fatalf("flat transcript should win")
	}
	ev.Transcript = ""
	if ev.TranscriptText() != "Agent: turn" {
		t.Fatalf("got %q", ev.TranscriptText())
	}
}
