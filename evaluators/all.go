package evaluators

import (
	"github.com/winnowbot/winnow/varstore"
)

// DefaultFactories is the registered detection set, in execution order.
func DefaultFactories() []Factory {
	return []Factory{
		func(v *varstore.Variables) Evaluator { return NewBadUsername(v) },
		func(v *varstore.Variables) Evaluator { return NewBioKeyword(v) },
		func(v *varstore.Variables) Evaluator { return NewLinkFarm(v) },
		func(v *varstore.Variables) Evaluator { return NewCopyPaste(v) },
		func(v *varstore.Variables) Evaluator { return NewZombieComment(v) },
		func(v *varstore.Variables) Evaluator { return NewTitleRepost(v) },
	}
}
