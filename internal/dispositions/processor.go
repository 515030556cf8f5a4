package dispositions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/credits"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/metrics"
	"dialer-platform/internal/nudges"
	"dialer-platform/internal/phonenumbers"
	"dialer-platform/internal/pipeline"
	"dialer-platform/internal/workflow"
	"dialer-platform/pkg/logger"
)

// Locker serializes work per key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type Charger interface {
	ChargeCall(ctx context.Context, userID, providerCallID string, durationSeconds int) (credits.Charge, error)
}

type Invoker interface {
	Invoke(ctx context.Context, function string, payload any) error
}

// Deps wires a Processor. Locker, Charger, Invoker and Metrics are optional.
type Deps struct {
	Calls    calls.Repository
	UoW      UnitOfWork
	Advancer *workflow.Advancer
	Locker   Locker
	Charger  Charger
	Invoker  Invoker
	Metrics  *metrics.DispositionMetrics

	// DispatchTimeout bounds each sibling function call. Defaults to 15s.
	DispatchTimeout time.Duration
}

// Processor turns one call webhook into lead, pipeline, nudge, workflow and
// usage updates.
type Processor struct {
	d Deps
	// clock is injectable for deterministic tests.
	clock func() time.Time
	wg    sync.WaitGroup
}

func NewProcessor(d Deps) *Processor {
	if d.Advancer == nil {
		d.Advancer = workflow.NewAdvancer(nil)
	}
	if d.DispatchTimeout <= 0 {
		d.DispatchTimeout = 15 * time.Second
	}
	return &Processor{d: d, clock: time.Now}
}

// Wait blocks until background dispatches have finished.
func (p *Processor) Wait() { p.wg.Wait() }

// Process handles one event. It returns an error only when nothing could be
// applied: a missing call id, an unknown owner, or a failed transaction.
// Individual step failures are logged, counted and listed in Result.Failures.
func (p *Processor) Process(ctx context.Context, ev CallEvent) (Result, error) {
	if !Handled(ev.Event) {
		return Result{Processed: false}, nil
	}
	if ev.ProviderCallID == "" {
		return Result{}, ErrMissingCallID
	}

	userID, leadID, err := p.resolveOwner(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	log := logger.From(ctx).With("call_id", ev.ProviderCallID, "user_id", userID, "lead_id", leadID, "event", ev.Event)
	ctx = logger.With(ctx, log)

	now := p.clock().UTC()
	secs, known := ev.Duration()
	outcome := calls.Classify(calls.OutcomeInput{
		Status:              ev.Status,
		DisconnectionReason: ev.DisconnectionReason,
		DurationSeconds:     secs,
		DurationKnown:       known,
		Analysis:            ev.Analysis,
	})
	p.d.Metrics.ObserveDisposition(string(outcome.Disposition))
	log.Info("call classified", "disposition", outcome.Disposition, "confidence", outcome.Confidence, "source", outcome.Source)

	res := Result{
		Processed:   true,
		CallID:      ev.ProviderCallID,
		Disposition: outcome.Disposition,
		Confidence:  outcome.Confidence,
		LeadID:      leadID,
		UserID:      userID,
	}

	transcript := ev.TranscriptText()
	if err := p.d.Calls.Upsert(ctx, p.record(ev, userID, leadID, outcome, secs, transcript, now)); err != nil {
		p.stepFailed(ctx, &res, "call_record", err)
	}

	if release := p.lockLead(ctx, leadID); release != nil {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("lead lock release failed", "err", err)
			}
		}()
	}

	ended := ev.Event == EventCallEnded
	err = p.d.UoW.Run(ctx, func(ctx context.Context, tx Tx) error {
		repos := tx.Repos()
		first, err := repos.Events.MarkProcessed(ctx, ev.ProviderCallID, ev.Event, now)
		if err != nil {
			return err
		}
		if !first {
			res.Duplicate = true
			return nil
		}

		step := func(name string, fn func(ctx context.Context) error) {
			if err := tx.Savepoint(ctx, "sp_"+name, fn); err != nil {
				p.stepFailed(ctx, &res, name, err)
			}
		}

		if leadID != "" {
			step("lead", func(ctx context.Context) error {
				return repos.Leads.ApplyPatch(ctx, userID, leadID, leads.PatchFor(outcome.Disposition, now))
			})
			step("pipeline", func(ctx context.Context) error {
				b, moved, err := pipeline.Move(ctx, repos.Pipeline, userID, leadID, outcome.Disposition, now)
				if err == nil && moved {
					logger.From(ctx).Debug("lead moved", "board_id", b.ID, "board", b.Name)
				}
				return err
			})
			step("nudge", func(ctx context.Context) error {
				return repos.Nudges.Upsert(ctx, nudges.TrackingFor(userID, leadID, outcome.Disposition, now))
			})
			if ended {
				step("workflow", func(ctx context.Context) error {
					wr, err := p.d.Advancer.Advance(ctx, repos.Workflow, userID, leadID, now)
					if err != nil {
						return err
					}
					res.Workflow = wr.Action
					return nil
				})
			}
		}

		if ended {
			if number := phonenumbers.UsageNumber(ev.Direction, ev.From, ev.To); number != "" {
				step("phone_usage", func(ctx context.Context) error {
					return repos.Numbers.IncrementDailyCalls(ctx, userID, number)
				})
			}
		}
		return nil
	})
	if err != nil {
		log.Error("call processing transaction failed", "err", err)
		return Result{}, fmt.Errorf("dispositions: apply %s: %w", ev.ProviderCallID, err)
	}
	if res.Duplicate {
		log.Info("duplicate delivery, downstream updates skipped")
		return res, nil
	}

	if ended && p.d.Charger != nil {
		if _, err := p.d.Charger.ChargeCall(ctx, userID, ev.ProviderCallID, secs); err != nil {
			p.stepFailed(ctx, &res, "credits", err)
		}
	}

	p.dispatch(ctx, ev, res, transcript)
	return res, nil
}

func (p *Processor) resolveOwner(ctx context.Context, ev CallEvent) (string, string, error) {
	userID, leadID := ev.Metadata.UserID, ev.Metadata.LeadID
	if userID != "" && leadID != "" {
		return userID, leadID, nil
	}
	owner, found, err := p.d.Calls.FindOwner(ctx, ev.ProviderCallID)
	if err != nil {
		return "", "", fmt.Errorf("dispositions: resolve owner: %w", err)
	}
	if found {
		if userID == "" {
			userID = owner.UserID
		}
		if leadID == "" {
			leadID = owner.LeadID
		}
	}
	if userID == "" {
		return "", "", ErrUnresolvedUser
	}
	return userID, leadID, nil
}

func (p *Processor) record(ev CallEvent, userID, leadID string, o calls.Outcome, secs int, transcript string, now time.Time) calls.Record {
	r := calls.Record{
		ProviderCallID:  ev.ProviderCallID,
		UserID:          userID,
		LeadID:          leadID,
		CampaignID:      ev.Metadata.CampaignID,
		AgentID:         ev.AgentID,
		From:            ev.From,
		To:              ev.To,
		Direction:       ev.Direction,
		Status:          ev.Status,
		Outcome:         o.Disposition,
		Confidence:      o.Confidence,
		DurationSeconds: secs,
		Transcript:      transcript,
		RecordingURL:    ev.RecordingURL,
		AnsweredAt:      ev.StartedAt,
		EndedAt:         ev.EndedAt,
		UpdatedAt:       now,
	}
	if ev.Analysis != nil {
		r.Summary = ev.Analysis.CallSummary
		r.Sentiment = ev.Analysis.UserSentiment
	}
	return r
}

// lockLead returns nil when no lock is held. Lock errors do not stop processing;
// the workflow row lock still guards advancement.
func (p *Processor) lockLead(ctx context.Context, leadID string) func(context.Context) error {
	if p.d.Locker == nil || leadID == "" {
		return nil
	}
	release, err := p.d.Locker.Acquire(ctx, leadID)
	if err != nil {
		logger.From(ctx).Warn("lead lock not acquired, continuing", "err", err)
		return nil
	}
	return release
}

func (p *Processor) stepFailed(ctx context.Context, res *Result, step string, err error) {
	l := logger.From(ctx)
	if errors.Is(err, leads.ErrLeadNotFound) || errors.Is(err, phonenumbers.ErrNumberNotFound) {
		l.Warn("pipeline step skipped", "step", step, "err", err)
	} else {
		l.Error("pipeline step failed", "step", step, "err", err)
	}
	p.d.Metrics.ObserveStepFailure(step)
	res.Failures = append(res.Failures, step)
}

// dispatch notifies sibling functions in the background. Failures are logged only.
func (p *Processor) dispatch(ctx context.Context, ev CallEvent, res Result, transcript string) {
	if p.d.Invoker == nil {
		return
	}
	payload := DispatchPayload{
		Event:       ev.Event,
		CallID:      res.CallID,
		UserID:      res.UserID,
		LeadID:      res.LeadID,
		CampaignID:  ev.Metadata.CampaignID,
		Disposition: res.Disposition,
		Confidence:  res.Confidence,
		Transcript:  transcript,
	}
	functions := []string{dispatch.FunctionDispositionRouter}
	if ev.Event == EventCallEnded && ev.Analysis == nil && transcript != "" {
		functions = append(functions, dispatch.FunctionAnalyzeCallTranscript)
	}

	bg := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for _, fn := range functions {
			callCtx, cancel := context.WithTimeout(bg, p.d.DispatchTimeout)
			if err := p.d.Invoker.Invoke(callCtx, fn, payload); err != nil {
				logger.From(bg).Warn("sibling function failed", "function", fn, "err", err)
			}
			cancel()
		}
	}()
}
