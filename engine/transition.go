package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/status"
)

// ErrMissingTrackingRef is returned when a transition on the authoritative
// node has no tracking post to anchor the classification to. This is an
// invariant violation for the single operation, never a silent no-op.
var ErrMissingTrackingRef = errors.New("transition requires a tracking post reference on the authoritative node")

// OperatorSystem marks transitions performed by the detection pipeline
// itself rather than a human moderator.
const OperatorSystem = "winnow"

const (
	// accounts likely to change state again soon
	shortRecheckHorizon = 24 * time.Hour
	// settled accounts, verified occasionally
	longRecheckHorizon = 28 * 24 * time.Hour

	// at most one submitter feedback message per account per this window
	feedbackWindow = 24 * time.Hour
)

// TransitionInput carries one requested status change.
type TransitionInput struct {
	Account   string
	NewStatus status.Status
	// who is making the change (moderator name or OperatorSystem)
	Operator string
	// original reporter; only used when the record is created by this call
	Submitter string
	// tracking post, required on the authoritative node for new records
	TrackingPostID string
	// free-text audit reason
	Reason string
}

// Transition is the sole mutation path for a record's status. It loads (or
// implicitly creates) the record, validates, preserves settled statuses in
// PreviousStatus, prunes now-invalid exemption flags, persists, and then, on
// the authoritative node only, adjusts aggregate counters, updates the
// tracking flair, schedules a re-check, and notifies.
//
// Calling it again with the record's current status refreshes LastUpdate and
// re-derives flags but does not touch counters or send anything.
func (eng *Engine) Transition(ctx context.Context, in TransitionInput) (*status.Record, error) {
	if !in.NewStatus.Valid() {
		return nil, fmt.Errorf("invalid target status: %q", in.NewStatus)
	}

	now := time.Now().UTC()
	created := false
	rec, err := eng.Records.Get(ctx, in.Account)
	if errors.Is(err, recordstore.ErrNotFound) {
		created = true
		rec = &status.Record{
			Account:    in.Account,
			Submitter:  in.Submitter,
			ReportedAt: now,
		}
	} else if err != nil {
		return nil, fmt.Errorf("loading classification record: %w", err)
	}

	if in.TrackingPostID != "" {
		rec.TrackingPostID = in.TrackingPostID
	}
	if eng.Authoritative && rec.TrackingPostID == "" {
		return nil, fmt.Errorf("%w: account %s", ErrMissingTrackingRef, in.Account)
	}

	prev := rec.Status
	changed := created || prev != in.NewStatus
	if changed && prev.Settled() {
		p := prev
		rec.PreviousStatus = &p
	}
	rec.Status = in.NewStatus
	rec.Operator = in.Operator
	rec.LastUpdate = now
	dropped := rec.PruneFlags()
	if len(dropped) > 0 {
		eng.Logger.Info("pruned exemption flags", "account", in.Account, "flags", dropped)
	}

	if err := eng.Records.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting classification record: %w", err)
	}

	if !eng.Authoritative {
		return rec, nil
	}

	if changed {
		transitionCount.WithLabelValues(prev.String(), in.NewStatus.String()).Inc()
		// exactly one decrement/increment pair per real change
		if !created {
			if err := eng.Counters.IncrementBy(ctx, prev, -1); err != nil {
				eng.Logger.Error("decrementing aggregate counter", "status", prev, "err", err)
			}
		}
		if err := eng.Counters.IncrementBy(ctx, in.NewStatus, 1); err != nil {
			eng.Logger.Error("incrementing aggregate counter", "status", in.NewStatus, "err", err)
		}

		if err := eng.Platform.SetTrackingFlair(ctx, rec.TrackingPostID, in.NewStatus.FlairID()); err != nil {
			// transient collaborator error; the next transition or sweep
			// refreshes the flair
			eng.Logger.Warn("updating tracking flair", "account", in.Account, "err", err)
		}

		if err := eng.Rechecks.ScheduleRecheck(ctx, in.Account, recheckHorizon(in.NewStatus)); err != nil {
			eng.Logger.Error("scheduling re-check", "account", in.Account, "err", err)
		}

		eng.auditNote(ctx, rec, prev, in)
		if prev == status.StatusPending && !created {
			eng.submitterFeedback(ctx, rec)
		}
	}

	return rec, nil
}

func recheckHorizon(s status.Status) time.Duration {
	switch s {
	case status.StatusPending, status.StatusPurged, status.StatusRetired:
		return shortRecheckHorizon
	}
	return longRecheckHorizon
}

func (eng *Engine) auditNote(ctx context.Context, rec *status.Record, prev status.Status, in TransitionInput) {
	eng.Logger.Info("status transition",
		"account", rec.Account,
		"from", prev,
		"to", rec.Status,
		"operator", in.Operator,
		"reason", in.Reason,
	)
	if eng.Notifier == nil {
		return
	}
	if err := eng.Notifier.SendTransition(ctx, rec, prev, in.Operator, in.Reason); err != nil {
		eng.Logger.Warn("sending transition notification", "account", rec.Account, "err", err)
	}
}

// submitterFeedback messages the original reporter when their report is
// resolved. A cache marker keeps this to at most one message per account per
// window, so flapping statuses don't spam the reporter.
func (eng *Engine) submitterFeedback(ctx context.Context, rec *status.Record) {
	if rec.Submitter == "" || rec.Submitter == OperatorSystem {
		return
	}
	sent, err := eng.hasFeedbackMarker(ctx, rec.Account)
	if err != nil || sent {
		return
	}
	subject := "Your bot report was reviewed"
	body := fmt.Sprintf("Thanks for reporting %s. The account has been classified as %s.",
		rec.Account, strings.ToLower(rec.Status.String()))
	if err := eng.Platform.SendMessage(ctx, rec.Submitter, subject, body); err != nil {
		eng.Logger.Warn("sending submitter feedback", "submitter", rec.Submitter, "err", err)
		return
	}
	_ = eng.setFeedbackMarker(ctx, rec.Account)
}

func (eng *Engine) hasFeedbackMarker(ctx context.Context, account string) (bool, error) {
	v, err := eng.Cache.Get(ctx, "feedback", account)
	return v != "", err
}

func (eng *Engine) setFeedbackMarker(ctx context.Context, account string) error {
	return eng.Cache.Set(ctx, "feedback", account, "1", feedbackWindow)
}

// ApplyOutcome turns an evaluation outcome into the appropriate transition:
// auto-ban verdicts ban the account and settle the record as banned;
// report verdicts open (or keep) a pending record for human review.
func (eng *Engine) ApplyOutcome(ctx context.Context, out *Outcome, trackingPostID string) error {
	switch out.Verdict {
	case VerdictNone:
		return nil
	case VerdictAutoBan:
		reason := strings.Join(out.Reasons(), "; ")
		if eng.Authoritative {
			if err := eng.Platform.Ban(ctx, eng.Community, out.Account, reason); err != nil {
				return fmt.Errorf("banning account: %w", err)
			}
		}
		_, err := eng.Transition(ctx, TransitionInput{
			Account:        out.Account,
			NewStatus:      status.StatusBanned,
			Operator:       OperatorSystem,
			Submitter:      OperatorSystem,
			TrackingPostID: trackingPostID,
			Reason:         reason,
		})
		return err
	case VerdictReport:
		// never reopen an account a human already settled
		if rec, err := eng.Records.Get(ctx, out.Account); err == nil && rec.Status.Settled() {
			return nil
		}
		_, err := eng.Transition(ctx, TransitionInput{
			Account:        out.Account,
			NewStatus:      status.StatusPending,
			Operator:       OperatorSystem,
			Submitter:      OperatorSystem,
			TrackingPostID: trackingPostID,
			Reason:         strings.Join(out.Reasons(), "; "),
		})
		return err
	}
	return nil
}
