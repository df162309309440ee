package evaluators

import (
	"fmt"

	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// BioKeyword matches profile bios against configured patterns (promo
// boilerplate, service-bot disclosures pasted by spam rings). Bio text is
// written by the account owner, so this only ever produces a report for human
// review.
type BioKeyword struct {
	Base
	vars *varstore.Variables
}

func NewBioKeyword(vars *varstore.Variables) *BioKeyword {
	return &BioKeyword{vars: vars}
}

func (e *BioKeyword) Name() string   { return "Bio Keyword" }
func (e *BioKeyword) Module() string { return "biokeyword" }

func (e *BioKeyword) CanAutoBan() bool         { return false }
func (e *BioKeyword) BanContentThreshold() int { return 0 }

func (e *BioKeyword) PreEvaluateAccount(summary *platform.AccountSummary) bool {
	if summary.Bio == "" {
		return false
	}
	_, ok := matchAny(e.vars.GetRegexes(e.Module(), "regexes"), summary.Bio)
	return ok
}

func (e *BioKeyword) Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result {
	if summary.Bio == "" {
		return nil
	}
	pattern, ok := matchAny(e.vars.GetRegexes(e.Module(), "regexes"), summary.Bio)
	if !ok {
		return nil
	}
	return &Result{
		Evaluator:    e.Name(),
		Reason:       fmt.Sprintf("profile bio matches %q", pattern),
		MetThreshold: true,
		CanAutoBan:   false,
	}
}
