package evaluators

import (
	"fmt"

	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// CopyPaste detects accounts that repeat the same comment body across many
// threads. Two identical bodies happen to humans; the threshold is over the
// normalized form so punctuation shuffling does not evade it.
type CopyPaste struct {
	Base
	vars *varstore.Variables
}

func NewCopyPaste(vars *varstore.Variables) *CopyPaste {
	return &CopyPaste{vars: vars}
}

func (e *CopyPaste) Name() string   { return "Copy Paste" }
func (e *CopyPaste) Module() string { return "copypaste" }

func (e *CopyPaste) CanAutoBan() bool { return true }

func (e *CopyPaste) BanContentThreshold() int {
	return e.vars.GetInt(e.Module(), "banContentThreshold", 5)
}

func (e *CopyPaste) repeatThreshold() int {
	return e.vars.GetInt(e.Module(), "repeatThreshold", 3)
}

func (e *CopyPaste) minLength() int {
	return e.vars.GetInt(e.Module(), "minLength", 20)
}

// established accounts are left to the proactive sweep; the event-triggered
// pre-filter only accepts accounts still below the karma gate, so most
// traffic never costs a history fetch
func (e *CopyPaste) karmaGate() int {
	return e.vars.GetInt(e.Module(), "karmaGate", 1000)
}

func (e *CopyPaste) accepts(event *platform.Content, summary *platform.AccountSummary) bool {
	return len(event.Body) >= e.minLength() && summary.TotalKarma() < e.karmaGate()
}

func (e *CopyPaste) PreEvaluateComment(event *platform.Content, summary *platform.AccountSummary) bool {
	return e.accepts(event, summary)
}

func (e *CopyPaste) PreEvaluatePost(post *platform.Content, summary *platform.AccountSummary) bool {
	return e.accepts(post, summary)
}

func (e *CopyPaste) Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result {
	counts := map[string]int{}
	best := 0
	for _, c := range history {
		if len(c.Body) < e.minLength() {
			continue
		}
		n := NormalizeBody(c.Body)
		if n == "" {
			continue
		}
		counts[n]++
		if counts[n] > best {
			best = counts[n]
		}
	}
	if best < e.repeatThreshold() {
		return nil
	}
	return &Result{
		Evaluator:    e.Name(),
		Reason:       fmt.Sprintf("same body repeated %d times in recent history", best),
		MetThreshold: true,
		CanAutoBan:   best >= e.BanContentThreshold(),
	}
}
