// Package evaluators holds the pluggable bot-detection rules. Each evaluator
// is stateless apart from the configuration snapshot injected at
// construction, exposes cheap pre-filters per trigger type, and an expensive
// full-history check which the runner invokes only after a pre-filter
// accepted and history was fetched once.
package evaluators

import (
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// Result is the outcome of one (account, evaluator) pair. A nil result from
// Evaluate means no hit.
type Result struct {
	Evaluator string
	// human-readable hit reason, for audit notes and review queues
	Reason string
	// did the evaluator's criteria fire
	MetThreshold bool
	// may this result alone trigger an automatic ban, rather than a report
	// for human review. Evaluators downgrade this for ambiguous cases.
	CanAutoBan bool
}

// Evaluator is the capability set every detection rule implements. Pre-filter
// stages are side-effect-free and must answer without fetching anything; an
// unimplemented stage answers false (fail closed), so each evaluator opts in
// to exactly the trigger types it cares about.
type Evaluator interface {
	Name() string
	// Module is the configuration namespace; "<module>:killswitch" disables
	// the evaluator without a code change.
	Module() string
	// CanAutoBan and BanContentThreshold describe the module's configured
	// auto-ban policy for operators and audits. The runner never consults
	// them: each Evaluate call applies its own policy and emits the decision
	// in Result.CanAutoBan, which is authoritative.
	CanAutoBan() bool
	// minimum corroborating content items before a hit may auto-ban
	BanContentThreshold() int

	PreEvaluateComment(event *platform.Content, summary *platform.AccountSummary) bool
	PreEvaluatePost(post *platform.Content, summary *platform.AccountSummary) bool
	PreEvaluateEdit(event *platform.Content, summary *platform.AccountSummary) bool
	PreEvaluateAccount(summary *platform.AccountSummary) bool

	// Evaluate runs the authoritative check. The caller fetched history once;
	// evaluators never fetch anything themselves.
	Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result
}

// Base provides the fail-closed pre-filter defaults. Concrete evaluators
// embed it and override only the stages they trigger on.
type Base struct{}

func (Base) PreEvaluateComment(*platform.Content, *platform.AccountSummary) bool { return false }
func (Base) PreEvaluatePost(*platform.Content, *platform.AccountSummary) bool    { return false }
func (Base) PreEvaluateEdit(*platform.Content, *platform.AccountSummary) bool    { return false }
func (Base) PreEvaluateAccount(*platform.AccountSummary) bool                    { return false }

// Factory builds one evaluator against a configuration snapshot. The runner
// rebuilds the evaluator list at the start of each unit of work, so a config
// reload between units is picked up without locking inside evaluators.
type Factory func(vars *varstore.Variables) Evaluator

// Build instantiates factories against one configuration snapshot, dropping
// killswitched modules.
func Build(factories []Factory, vars *varstore.Variables) []Evaluator {
	out := make([]Evaluator, 0, len(factories))
	for _, f := range factories {
		ev := f(vars)
		if vars.Killswitch(ev.Module()) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
