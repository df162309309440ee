package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/winnowbot/winnow/evaluators"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/status"
	"github.com/winnowbot/winnow/varstore"
)

func TestPreFilterShortCircuit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	fake.Summaries["regular-user"] = &platform.AccountSummary{
		Name:         "regular-user",
		CreatedAt:    time.Now().Add(-3 * 365 * 24 * time.Hour),
		CommentKarma: 12000,
	}

	event := &platform.Content{
		Kind:   platform.KindComment,
		Author: "regular-user",
		Body:   "a perfectly ordinary comment about gardening",
	}
	out, err := eng.EvaluateContent(ctx, event)
	assert.NoError(err)
	assert.Equal(VerdictNone, out.Verdict)
	// every pre-filter rejected, so history was never fetched
	assert.False(out.HistoryFetched)
	assert.Equal(0, fake.HistoryCalls)
}

func TestEventTriggeredAutoBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	fake.Summaries["Bot42"] = &platform.AccountSummary{
		Name:      "Bot42",
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}
	fake.Histories["Bot42"] = []*platform.Content{
		{Kind: platform.KindComment, Author: "Bot42", Body: "hello"},
	}

	event := &platform.Content{Kind: platform.KindComment, Author: "Bot42", Body: "hello"}
	out, err := eng.EvaluateContent(ctx, event)
	assert.NoError(err)
	assert.Equal(VerdictAutoBan, out.Verdict)
	assert.True(out.HistoryFetched)
	assert.Equal(1, fake.HistoryCalls)

	assert.NoError(eng.ApplyOutcome(ctx, out, "post-7"))
	assert.Equal([]string{"Bot42"}, fake.Bans)
	rec, err := eng.Records.Get(ctx, "Bot42")
	assert.NoError(err)
	assert.Equal(status.StatusBanned, rec.Status)
	assert.Equal(OperatorSystem, rec.Operator)
}

func TestSummaryCacheAvoidsRefetch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	fake.Summaries["chatty"] = &platform.AccountSummary{
		Name:         "chatty",
		CreatedAt:    time.Now().Add(-3 * 365 * 24 * time.Hour),
		CommentKarma: 9000,
	}
	event := &platform.Content{Kind: platform.KindComment, Author: "chatty", Body: "hi"}

	_, err := eng.EvaluateContent(ctx, event)
	assert.NoError(err)
	_, err = eng.EvaluateContent(ctx, event)
	assert.NoError(err)
	assert.Equal(1, fake.SummaryCalls)
}

type panicky struct {
	evaluators.Base
}

func (panicky) Name() string                { return "Panicky" }
func (panicky) Module() string              { return "panicky" }
func (panicky) CanAutoBan() bool            { return false }
func (panicky) BanContentThreshold() int    { return 0 }
func (panicky) PreEvaluateComment(*platform.Content, *platform.AccountSummary) bool { return true }
func (panicky) Evaluate(*platform.AccountSummary, []*platform.Content) *evaluators.Result {
	panic("broken rule")
}

func TestEvaluatorFailureIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	// panicky first, so a failure would otherwise mask the real hit
	eng.Factories = append([]evaluators.Factory{
		func(*varstore.Variables) evaluators.Evaluator { return panicky{} },
	}, eng.Factories...)

	fake.Summaries["Bot99"] = &platform.AccountSummary{
		Name:      "Bot99",
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}
	event := &platform.Content{Kind: platform.KindComment, Author: "Bot99", Body: "hi"}
	out, err := eng.EvaluateContent(ctx, event)
	assert.NoError(err)
	assert.Equal(VerdictAutoBan, out.Verdict)
	assert.Len(out.Results, 1)
	assert.Equal("Bad Username", out.Results[0].Evaluator)
}

func TestSweepEvaluationIgnoresPreFilters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	// zombie comments fire regardless of which pre-filters would accept,
	// because sweeps attempt every non-killswitched evaluator
	fake.Summaries["padder"] = &platform.AccountSummary{
		Name:         "padder",
		CreatedAt:    time.Now().Add(-10 * 24 * time.Hour),
		CommentKarma: 50,
	}
	fake.Histories["padder"] = []*platform.Content{
		{Kind: platform.KindComment, Author: "padder", Body: "Nice post!"},
		{Kind: platform.KindComment, Author: "padder", Body: "nice post indeed"},
	}
	out, err := eng.EvaluateAccount(ctx, "padder")
	assert.NoError(err)
	assert.Equal(VerdictReport, out.Verdict)
	assert.True(out.HistoryFetched)
}

func TestReportDoesNotReopenSettled(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	fake.Summaries["padder"] = &platform.AccountSummary{
		Name:      "padder",
		CreatedAt: time.Now().Add(-10 * 24 * time.Hour),
	}
	fake.Histories["padder"] = []*platform.Content{
		{Kind: platform.KindComment, Author: "padder", Body: "Nice post!"},
		{Kind: platform.KindComment, Author: "padder", Body: "nice post indeed"},
	}

	_, err := eng.Transition(ctx, TransitionInput{
		Account:        "padder",
		NewStatus:      status.StatusOrganic,
		Operator:       "mod",
		TrackingPostID: "post-8",
	})
	assert.NoError(err)

	out, err := eng.EvaluateAccount(ctx, "padder")
	assert.NoError(err)
	assert.Equal(VerdictReport, out.Verdict)
	assert.NoError(eng.ApplyOutcome(ctx, out, "post-8"))

	rec, err := eng.Records.Get(ctx, "padder")
	assert.NoError(err)
	assert.Equal(status.StatusOrganic, rec.Status)
}
