package varstore

import (
	"fmt"
	"regexp"
	"strings"
)

// Configuration keys whose values hold regex patterns use this suffix
// convention, so they can be validated at load time.
func isRegexKey(key string) bool {
	return strings.HasSuffix(key, "regex") || strings.HasSuffix(key, "regexes")
}

// matches a quantified group which itself ends in a quantifier, eg "(a+)+"
var nestedQuantifier = regexp.MustCompile(`\((?:[^()\\]|\\.)*[+*](?:[^()\\]|\\.)*\)[+*{]`)

// CheckPattern validates a single operator-supplied pattern: it must compile,
// and it must pass a conservative nested-quantifier scan. Go's own engine is
// immune to catastrophic backtracking, but the same patterns are also served
// to collaborators with backtracking engines, so unsafe shapes are rejected
// at the source.
func CheckPattern(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("does not compile: %w", err)
	}
	if nestedQuantifier.MatchString(pattern) {
		return fmt.Errorf("nested quantifier (possible catastrophic backtracking): %s", pattern)
	}
	return nil
}

func validateRegexValues(values map[string]any) []Problem {
	var problems []Problem
	for mk, v := range values {
		module, key, ok := strings.Cut(mk, ":")
		if !ok || !isRegexKey(key) {
			continue
		}
		for _, pattern := range stringList(v) {
			if err := CheckPattern(pattern); err != nil {
				problems = append(problems, Problem{
					Module: module,
					Key:    key,
					Msg:    err.Error(),
				})
			}
		}
	}
	return problems
}

func stringList(v any) []string {
	switch tv := v.(type) {
	case string:
		return []string{tv}
	case []any:
		var out []string
		for _, e := range tv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
