// Package varstore loads the hot-reloadable detection configuration: regex
// lists, numeric thresholds, and per-module killswitches, parsed from an
// externally edited page of YAML documents. A parsed page is immutable; the
// Loader swaps the whole thing on successful reload and keeps the
// last-known-good copy on any validation failure.
package varstore

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Problem describes one validation failure in a configuration page.
type Problem struct {
	Module string
	Key    string
	Msg    string
}

func (p Problem) String() string {
	if p.Module == "" {
		return p.Msg
	}
	if p.Key == "" {
		return fmt.Sprintf("%s: %s", p.Module, p.Msg)
	}
	return fmt.Sprintf("%s:%s: %s", p.Module, p.Key, p.Msg)
}

// LoadError aggregates every problem found in one page, so the configuration
// editor gets a single complete notification instead of one per attempt.
type LoadError struct {
	Problems []Problem
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Variables is one immutable parsed configuration page.
type Variables struct {
	revision string
	values   map[string]any
	regexes  *lru.Cache[string, *regexp.Regexp]
}

func newVariables(revision string, values map[string]any) *Variables {
	cache, _ := lru.New[string, *regexp.Regexp](1024)
	return &Variables{
		revision: revision,
		values:   values,
		regexes:  cache,
	}
}

// Empty returns a Variables with no configuration, useful before the first
// load and in tests. Every evaluator must treat missing criteria as "no hit".
func Empty() *Variables {
	return newVariables("", map[string]any{})
}

func (v *Variables) Revision() string {
	return v.revision
}

func (v *Variables) get(module, key string) (any, bool) {
	val, ok := v.values[module+":"+key]
	return val, ok
}

func (v *Variables) GetString(module, key, def string) string {
	raw, ok := v.get(module, key)
	if !ok {
		return def
	}
	s, ok := raw.(string)
	if !ok {
		return def
	}
	return s
}

func (v *Variables) GetStringList(module, key string) []string {
	raw, ok := v.get(module, key)
	if !ok {
		return nil
	}
	return stringList(raw)
}

func (v *Variables) GetInt(module, key string, def int) int {
	raw, ok := v.get(module, key)
	if !ok {
		return def
	}
	switch tv := raw.(type) {
	case int:
		return tv
	case int64:
		return int(tv)
	case float64:
		return int(tv)
	}
	return def
}

func (v *Variables) GetFloat(module, key string, def float64) float64 {
	raw, ok := v.get(module, key)
	if !ok {
		return def
	}
	switch tv := raw.(type) {
	case float64:
		return tv
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	}
	return def
}

func (v *Variables) GetBool(module, key string, def bool) bool {
	raw, ok := v.get(module, key)
	if !ok {
		return def
	}
	b, ok := raw.(bool)
	if !ok {
		return def
	}
	return b
}

// Killswitch reports whether the module has been disabled by the operator.
func (v *Variables) Killswitch(module string) bool {
	return v.GetBool(module, "killswitch", false)
}

// GetRegexes returns the compiled patterns under module:key. Patterns were
// validated at load time; one that still fails to compile here is skipped.
func (v *Variables) GetRegexes(module, key string) []*regexp.Regexp {
	patterns := v.GetStringList(module, key)
	if len(patterns) == 0 {
		return nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, ok := v.regexes.Get(p); ok {
			out = append(out, re)
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		v.regexes.Add(p, re)
		out = append(out, re)
	}
	return out
}

// RegexPatterns returns every configured pattern, keyed by the flattened
// "module:key" name. Audit sweeps walk this to time patterns against a
// sample corpus.
func (v *Variables) RegexPatterns() map[string][]string {
	out := make(map[string][]string)
	for flat, val := range v.values {
		idx := strings.LastIndex(flat, ":")
		if idx < 0 || !isRegexKey(flat[idx+1:]) {
			continue
		}
		if patterns := stringList(val); len(patterns) > 0 {
			out[flat] = patterns
		}
	}
	return out
}

// Loader owns the current Variables and performs revision-gated reloads.
type Loader struct {
	lk      sync.RWMutex
	current *Variables
	logger  *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		current: Empty(),
		logger:  logger,
	}
}

// Current returns the live configuration. The returned handle stays valid
// (and internally consistent) across later reloads.
func (l *Loader) Current() *Variables {
	l.lk.RLock()
	defer l.lk.RUnlock()
	return l.current
}

// Load parses and validates one page. Returns true when a new configuration
// was installed. A revision matching the current one short-circuits without
// parsing. On any error the previous configuration stays in place.
func (l *Loader) Load(revision, raw string) (bool, error) {
	l.lk.RLock()
	sameRev := revision != "" && revision == l.current.revision
	l.lk.RUnlock()
	if sameRev {
		return false, nil
	}

	values, err := ParsePage(raw)
	if err != nil {
		l.logger.Warn("configuration rejected, keeping last known good", "revision", revision, "err", err)
		return false, err
	}
	if problems := validateRegexValues(values); len(problems) > 0 {
		err := &LoadError{Problems: problems}
		l.logger.Warn("configuration rejected, keeping last known good", "revision", revision, "err", err)
		return false, err
	}

	next := newVariables(revision, values)
	l.lk.Lock()
	l.current = next
	l.lk.Unlock()
	l.logger.Info("configuration installed", "revision", revision, "vars", len(values))
	return true, nil
}
