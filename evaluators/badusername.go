package evaluators

import (
	"fmt"
	"time"

	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// BadUsername flags fresh, low-karma accounts whose names match known
// bot-generation patterns. Name patterns alone are weak evidence, so the
// karma and age gates live in the pre-filter: an established account never
// reaches Evaluate.
type BadUsername struct {
	Base
	vars *varstore.Variables
}

func NewBadUsername(vars *varstore.Variables) *BadUsername {
	return &BadUsername{vars: vars}
}

func (e *BadUsername) Name() string   { return "Bad Username" }
func (e *BadUsername) Module() string { return "badusername" }

func (e *BadUsername) CanAutoBan() bool { return true }

func (e *BadUsername) BanContentThreshold() int {
	return e.vars.GetInt(e.Module(), "banContentThreshold", 0)
}

func (e *BadUsername) karmaThreshold() int {
	return e.vars.GetInt(e.Module(), "karmaThreshold", 100)
}

func (e *BadUsername) maxAge() time.Duration {
	days := e.vars.GetInt(e.Module(), "maxAgeDays", 30)
	return time.Duration(days) * 24 * time.Hour
}

func (e *BadUsername) accepts(summary *platform.AccountSummary) bool {
	if summary.TotalKarma() >= e.karmaThreshold() {
		return false
	}
	if summary.Age(time.Now()) >= e.maxAge() {
		return false
	}
	_, ok := matchAny(e.vars.GetRegexes(e.Module(), "regexes"), summary.Name)
	return ok
}

func (e *BadUsername) PreEvaluateComment(_ *platform.Content, summary *platform.AccountSummary) bool {
	return e.accepts(summary)
}

func (e *BadUsername) PreEvaluatePost(_ *platform.Content, summary *platform.AccountSummary) bool {
	return e.accepts(summary)
}

func (e *BadUsername) PreEvaluateEdit(_ *platform.Content, summary *platform.AccountSummary) bool {
	return e.accepts(summary)
}

func (e *BadUsername) PreEvaluateAccount(summary *platform.AccountSummary) bool {
	return e.accepts(summary)
}

func (e *BadUsername) Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result {
	if !e.accepts(summary) {
		return nil
	}
	pattern, _ := matchAny(e.vars.GetRegexes(e.Module(), "regexes"), summary.Name)
	// the name alone is the hit; any posted content corroborates it
	return &Result{
		Evaluator:    e.Name(),
		Reason:       fmt.Sprintf("username matches bot pattern %q", pattern),
		MetThreshold: true,
		CanAutoBan:   len(history) >= e.BanContentThreshold(),
	}
}
