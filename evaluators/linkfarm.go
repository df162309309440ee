package evaluators

import (
	"fmt"

	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// LinkFarm detects accounts funneling traffic to configured spam domains.
// The pre-filter only looks at the triggering content; Evaluate counts
// matching items across the whole history.
type LinkFarm struct {
	Base
	vars *varstore.Variables
}

func NewLinkFarm(vars *varstore.Variables) *LinkFarm {
	return &LinkFarm{vars: vars}
}

func (e *LinkFarm) Name() string   { return "Link Farm" }
func (e *LinkFarm) Module() string { return "linkfarm" }

func (e *LinkFarm) CanAutoBan() bool { return true }

func (e *LinkFarm) BanContentThreshold() int {
	return e.vars.GetInt(e.Module(), "banContentThreshold", 5)
}

func (e *LinkFarm) threshold() int {
	return e.vars.GetInt(e.Module(), "threshold", 3)
}

func (e *LinkFarm) contentMatches(c *platform.Content) bool {
	patterns := e.vars.GetRegexes(e.Module(), "domainregexes")
	if len(patterns) == 0 {
		return false
	}
	for _, domain := range ExtractDomains(c) {
		if _, ok := matchAny(patterns, domain); ok {
			return true
		}
	}
	return false
}

func (e *LinkFarm) PreEvaluateComment(event *platform.Content, _ *platform.AccountSummary) bool {
	return e.contentMatches(event)
}

func (e *LinkFarm) PreEvaluatePost(post *platform.Content, _ *platform.AccountSummary) bool {
	return e.contentMatches(post)
}

func (e *LinkFarm) PreEvaluateEdit(event *platform.Content, _ *platform.AccountSummary) bool {
	// spammers commonly edit links into innocuous content after the fact
	return e.contentMatches(event)
}

func (e *LinkFarm) Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result {
	matches := 0
	for _, c := range history {
		if e.contentMatches(c) {
			matches++
		}
	}
	if matches < e.threshold() {
		return nil
	}
	return &Result{
		Evaluator:    e.Name(),
		Reason:       fmt.Sprintf("%d history items link to flagged domains", matches),
		MetThreshold: true,
		CanAutoBan:   matches >= e.BanContentThreshold(),
	}
}
