package sweeps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/varstore"
)

const regexAuditJob = "regexaudit"

const (
	regexAuditRecentWindow = 24 * time.Hour
	// wall-clock bar for matching one pattern across the whole corpus
	slowPatternBudget = 50 * time.Millisecond
)

// sampleCorpus is what every configured pattern is timed against: typical
// content plus inputs known to blow up backtracking-prone expressions.
var sampleCorpus = buildSampleCorpus()

func buildSampleCorpus() []string {
	corpus := []string{
		"nice post, thanks for sharing",
		"Check out my store at https://example-shop.biz/deals today",
		"I am a bot, and this action was performed automatically.",
		strings.Repeat("word ", 2000),
		strings.Repeat("a", 10_000),
		strings.Repeat("ab", 5_000) + "!",
		strings.Repeat("https://spam.example/", 500),
	}
	return corpus
}

// RegexAudit times every configured pattern against the sample corpus and
// flags slow or structurally unsafe expressions before they hurt the hot
// path. Findings go to whoever last edited the configuration page.
type RegexAudit struct {
	deps Deps
	job  *chunk.Job
}

var _ Sweep = (*RegexAudit)(nil)

func NewRegexAudit(deps Deps) *RegexAudit {
	return &RegexAudit{
		deps: deps,
		job:  deps.newJob(regexAuditJob, regexAuditRecentWindow),
	}
}

func (s *RegexAudit) Name() string {
	return regexAuditJob
}

func (s *RegexAudit) Register(d *chunk.Dispatcher) {
	d.Register(regexAuditJob, s.run)
}

func (s *RegexAudit) Kickoff(ctx context.Context) error {
	return kickoff(ctx, s.job, s.deps.Scheduler)
}

func (s *RegexAudit) run(ctx context.Context, cont chunk.Continuation) error {
	if cont.Phase() != phaseProcess {
		if err := s.collect(ctx); err != nil {
			return err
		}
		cont.SetPhase(phaseProcess)
	}
	_, err := s.job.RunOnce(ctx, cont, s.processKey, s.finalize)
	return err
}

func (s *RegexAudit) collect(ctx context.Context) error {
	patterns := s.deps.Engine.Config.Current().RegexPatterns()
	var items []chunk.Item
	for key := range patterns {
		items = append(items, chunk.Item{Member: key, Score: 0})
	}
	s.deps.logger().Info("regexaudit sweep collected pattern keys", "count", len(items))
	if len(items) == 0 {
		return nil
	}
	return s.job.Worklist.Add(ctx, items...)
}

func (s *RegexAudit) processKey(ctx context.Context, key string, cont chunk.Continuation) error {
	patterns := s.deps.Engine.Config.Current().RegexPatterns()[key]
	for _, pattern := range patterns {
		cont.AddInt("patterns", 1)
		if finding := auditPattern(key, pattern); finding != "" {
			cont.AddInt("findings", 1)
			appendFinding(cont, finding)
		}
	}
	return nil
}

func auditPattern(key, pattern string) string {
	if err := varstore.CheckPattern(pattern); err != nil {
		return fmt.Sprintf("%s: %q rejected: %v", key, pattern, err)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("%s: %q does not compile: %v", key, pattern, err)
	}
	start := time.Now()
	for _, sample := range sampleCorpus {
		re.MatchString(sample)
	}
	if elapsed := time.Since(start); elapsed > slowPatternBudget {
		return fmt.Sprintf("%s: %q is slow: %v over corpus (budget %v)", key, pattern, elapsed, slowPatternBudget)
	}
	return ""
}

func appendFinding(cont chunk.Continuation, finding string) {
	existing := cont.GetString("report")
	if existing != "" {
		existing += "\n"
	}
	cont.SetString("report", existing+finding)
}

func (s *RegexAudit) finalize(ctx context.Context, cont chunk.Continuation) error {
	report := cont.GetString("report")
	s.deps.logger().Info("regexaudit sweep complete",
		"patterns", cont.GetInt("patterns"),
		"findings", cont.GetInt("findings"),
	)
	if report == "" {
		return nil
	}
	editor := s.deps.Engine.Config.Current().GetString("meta", "editor", "")
	return s.deps.Engine.Notifier.SendConfigAlert(ctx, editor, report)
}
