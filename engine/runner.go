package engine

import (
	"context"
	"fmt"

	"github.com/winnowbot/winnow/evaluators"
	"github.com/winnowbot/winnow/platform"
)

// Verdict is the aggregate decision across all evaluator results for one run.
type Verdict string

const (
	// no evaluator fired
	VerdictNone Verdict = "none"
	// at least one evaluator fired, human review required
	VerdictReport Verdict = "report"
	// at least one result cleared its evaluator's auto-ban bar
	VerdictAutoBan Verdict = "autoban"
)

// Outcome is the full result of one evaluation run for an account.
type Outcome struct {
	Account string
	Verdict Verdict
	Results []*evaluators.Result
	// whether the expensive full-history fetch happened
	HistoryFetched bool
}

// EvaluateContent runs the event-triggered pipeline for a single new comment,
// post, or edit: pre-filter every registered evaluator against the event
// itself, and only if at least one accepts, fetch full history once and run
// the accepting evaluators against it.
func (eng *Engine) EvaluateContent(ctx context.Context, event *platform.Content) (*Outcome, error) {
	out := &Outcome{Account: event.Author, Verdict: VerdictNone}
	eventProcessCount.WithLabelValues(string(event.Kind)).Inc()

	summary, err := eng.accountSummary(ctx, event.Author)
	if err != nil {
		eventErrorCount.WithLabelValues(string(event.Kind)).Inc()
		return nil, fmt.Errorf("fetching account summary: %w", err)
	}

	evals := evaluators.Build(eng.Factories, eng.Config.Current())
	var accepted []evaluators.Evaluator
	for _, ev := range evals {
		if eng.preFilter(ev, event, summary) {
			accepted = append(accepted, ev)
		}
	}
	if len(accepted) == 0 {
		return out, nil
	}

	history, err := eng.Platform.History(ctx, event.Author, platform.HistoryLimit)
	if err != nil {
		eventErrorCount.WithLabelValues(string(event.Kind)).Inc()
		return nil, fmt.Errorf("fetching account history: %w", err)
	}
	out.HistoryFetched = true
	historyFetchCount.Inc()

	out.Results = eng.runEvaluators(accepted, summary, history)
	out.Verdict = aggregate(out.Results)
	return out, nil
}

// EvaluateAccount runs the proactive (sweep-triggered) pipeline: every
// non-killswitched evaluator gets the full history, pre-filters are not
// consulted.
func (eng *Engine) EvaluateAccount(ctx context.Context, account string) (*Outcome, error) {
	out := &Outcome{Account: account, Verdict: VerdictNone}
	eventProcessCount.WithLabelValues("account").Inc()

	summary, err := eng.accountSummary(ctx, account)
	if err != nil {
		eventErrorCount.WithLabelValues("account").Inc()
		return nil, fmt.Errorf("fetching account summary: %w", err)
	}
	evals := evaluators.Build(eng.Factories, eng.Config.Current())
	if len(evals) == 0 {
		return out, nil
	}
	history, err := eng.Platform.History(ctx, account, platform.HistoryLimit)
	if err != nil {
		eventErrorCount.WithLabelValues("account").Inc()
		return nil, fmt.Errorf("fetching account history: %w", err)
	}
	out.HistoryFetched = true
	historyFetchCount.Inc()

	out.Results = eng.runEvaluators(evals, summary, history)
	out.Verdict = aggregate(out.Results)
	return out, nil
}

func (eng *Engine) preFilter(ev evaluators.Evaluator, event *platform.Content, summary *platform.AccountSummary) bool {
	switch event.Kind {
	case platform.KindComment:
		return ev.PreEvaluateComment(event, summary)
	case platform.KindPost:
		return ev.PreEvaluatePost(event, summary)
	case platform.KindEdit:
		return ev.PreEvaluateEdit(event, summary)
	}
	return false
}

// runEvaluators calls Evaluate on each evaluator, isolating failures: a
// panicking evaluator is logged and treated as a no-hit for this run, so one
// broken rule never voids the others' results.
func (eng *Engine) runEvaluators(evals []evaluators.Evaluator, summary *platform.AccountSummary, history []*platform.Content) []*evaluators.Result {
	var results []*evaluators.Result
	for _, ev := range evals {
		res := eng.runOne(ev, summary, history)
		if res != nil && res.MetThreshold {
			evaluatorHitCount.WithLabelValues(ev.Module()).Inc()
			results = append(results, res)
		}
	}
	return results
}

func (eng *Engine) runOne(ev evaluators.Evaluator, summary *platform.AccountSummary, history []*platform.Content) (res *evaluators.Result) {
	defer func() {
		if r := recover(); r != nil {
			evaluatorErrorCount.WithLabelValues(ev.Module()).Inc()
			eng.Logger.Error("evaluator execution exception", "evaluator", ev.Name(), "account", summary.Name, "err", r)
			res = nil
		}
	}()
	return ev.Evaluate(summary, history)
}

// aggregate applies the overall decision rule. Individual results already
// account for their evaluator's corroborating-content threshold via
// Result.CanAutoBan.
func aggregate(results []*evaluators.Result) Verdict {
	verdict := VerdictNone
	for _, r := range results {
		if !r.MetThreshold {
			continue
		}
		if r.CanAutoBan {
			return VerdictAutoBan
		}
		verdict = VerdictReport
	}
	return verdict
}

// Reasons joins the hit reasons for audit notes.
func (o *Outcome) Reasons() []string {
	var out []string
	for _, r := range o.Results {
		out = append(out, r.Evaluator+": "+r.Reason)
	}
	return out
}
