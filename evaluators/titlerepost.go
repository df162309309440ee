package evaluators

import (
	"fmt"

	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/varstore"
)

// TitleRepost is a karma-farming signal: the account re-submits its own (or
// scraped) post titles over and over. Report-only; repost detection has too
// many benign collisions (crossposting, series posts) for automatic action.
type TitleRepost struct {
	Base
	vars *varstore.Variables
}

func NewTitleRepost(vars *varstore.Variables) *TitleRepost {
	return &TitleRepost{vars: vars}
}

func (e *TitleRepost) Name() string   { return "Title Repost" }
func (e *TitleRepost) Module() string { return "titlerepost" }

func (e *TitleRepost) CanAutoBan() bool         { return false }
func (e *TitleRepost) BanContentThreshold() int { return 0 }

func (e *TitleRepost) PreEvaluatePost(post *platform.Content, _ *platform.AccountSummary) bool {
	return post.Title != ""
}

func (e *TitleRepost) Evaluate(summary *platform.AccountSummary, history []*platform.Content) *Result {
	counts := map[string]int{}
	dupes := 0
	for _, p := range OfKind(history, platform.KindPost) {
		if p.Title == "" {
			continue
		}
		n := NormalizeBody(p.Title)
		counts[n]++
		if counts[n] == 2 {
			dupes++
		}
	}
	threshold := e.vars.GetInt(e.Module(), "threshold", 2)
	if dupes < threshold {
		return nil
	}
	return &Result{
		Evaluator:    e.Name(),
		Reason:       fmt.Sprintf("%d distinct titles submitted more than once", dupes),
		MetThreshold: true,
		CanAutoBan:   false,
	}
}
