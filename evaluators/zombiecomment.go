package evaluators

import (
	"fmt"
	"time"

	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// ZombieComment targets resurrected/purchased accounts that pad karma with
// short generic replies ("Nice post!", "So true"). Phrase patterns come from
// configuration. Old accounts with this pattern are ambiguous (plenty of
// humans write one-liners), so the result downgrades to report-only for
// accounts older than the configured horizon.
type ZombieComment struct {
	Base
	vars *varstore.Variables
}

func NewZombieComment(vars *varstore.Variables) *ZombieComment {
	return &ZombieComment{vars: vars}
}

func (e *ZombieComment) Name() string   { return "Zombie Comment" }
func (e *ZombieComment) Module() string { return "zombiecomment" }

func (e *ZombieComment) CanAutoBan() bool { return true }

func (e *ZombieComment) BanContentThreshold() int {
	return e.vars.GetInt(e.Module(), "banContentThreshold", 10)
}

func (e *ZombieComment) maxBodyLength() int {
	return e.vars.GetInt(e.Module(), "maxBodyLength", 40)
}

func (e *ZombieComment) autoBanMaxAge() time.Duration {
	days := e.vars.GetInt(e.Module(), "autoBanMaxAgeDays", 365)
	return time.Duration(days) * 24 * time.Hour
}

func (e *ZombieComment) commentMatches(c *platform.Content) bool {
	if c.Kind != platform.KindComment || len(c.Body) > e.maxBodyLength() {
		return false
	}
	_, ok := matchAny(e.vars.GetRegexes(e.Module(), "phraseregexes"), c.Body)
	return ok
}

func (e *ZombieComment) PreEvaluateComment(event *platform.Content, _ *platform.AccountSummary) bool {
	return e.commentMatches(event)
}

func (e *ZombieComment) Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result {
	hits := 0
	for _, c := range OfKind(history, platform.KindComment) {
		if e.commentMatches(c) {
			hits++
		}
	}
	threshold := e.vars.GetInt(e.Module(), "threshold", 5)
	if hits < threshold {
		return nil
	}
	canAutoBan := hits >= e.BanContentThreshold()
	if summary.Age(time.Now()) > e.autoBanMaxAge() {
		canAutoBan = false
	}
	return &Result{
		Evaluator:    e.Name(),
		Reason:       fmt.Sprintf("%d short generic comments in recent history", hits),
		MetThreshold: true,
		CanAutoBan:   canAutoBan,
	}
}
