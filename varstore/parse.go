package varstore

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// module name reserved for the substitution document
const substitutionsModule = "substitutions"

// ParsePage parses one configuration page: multiple YAML documents
// concatenated with "---" separators, each carrying a unique "name" key which
// becomes the module namespace. All other top-level keys become "module:key"
// entries in the returned flat map.
//
// A document named "substitutions" defines string fragments which are expanded
// wherever "{{token}}" appears in string values of every other document,
// before any further interpretation. Expansion happens once, at parse time.
func ParsePage(raw string) (map[string]any, error) {
	docs, err := splitDocuments(raw)
	if err != nil {
		return nil, err
	}

	// first pass: collect substitutions
	subs := map[string]string{}
	for _, doc := range docs {
		name, _ := doc["name"].(string)
		if name != substitutionsModule {
			continue
		}
		for k, v := range doc {
			if k == "name" {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, &LoadError{Problems: []Problem{{
					Module: substitutionsModule,
					Key:    k,
					Msg:    "substitution values must be strings",
				}}}
			}
			subs[k] = s
		}
	}

	// second pass: expand and flatten
	out := map[string]any{}
	seen := map[string]bool{}
	var problems []Problem
	for _, doc := range docs {
		name, ok := doc["name"].(string)
		if !ok || name == "" {
			problems = append(problems, Problem{Msg: "document missing 'name' field"})
			continue
		}
		if name == substitutionsModule {
			continue
		}
		if seen[name] {
			problems = append(problems, Problem{Module: name, Msg: "duplicate module name"})
			continue
		}
		seen[name] = true
		for k, v := range doc {
			if k == "name" {
				continue
			}
			out[name+":"+k] = expand(v, subs)
		}
	}
	if len(problems) > 0 {
		return nil, &LoadError{Problems: problems}
	}
	return out, nil
}

func splitDocuments(raw string) ([]map[string]any, error) {
	dec := yaml.NewDecoder(strings.NewReader(raw))
	var docs []map[string]any
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &LoadError{Problems: []Problem{{Msg: fmt.Sprintf("yaml parse: %v", err)}}}
		}
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// expand applies {{token}} substitutions recursively through strings, slices,
// and nested maps. Non-string scalars pass through untouched.
func expand(v any, subs map[string]string) any {
	switch tv := v.(type) {
	case string:
		return expandString(tv, subs)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = expand(e, subs)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = expand(e, subs)
		}
		return out
	default:
		return v
	}
}

func expandString(s string, subs map[string]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	for tok, frag := range subs {
		s = strings.ReplaceAll(s, "{{"+tok+"}}", frag)
	}
	return s
}
