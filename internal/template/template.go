// Package template renders prompt templates of the form "{{ path.to.var }}"
// against a variable context. Paths are JSONPath expressions without the
// leading "$.", so "translated.meta.seo_title" and "items[0].name" both work.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// compiled paths are shared across renders
var pathCache sync.Map

func compile(path string) (jp.Expr, error) {
	if x, ok := pathCache.Load(path); ok {
		return x.(jp.Expr), nil
	}
	expr := path
	if !strings.HasPrefix(expr, "$") {
		expr = "$." + expr
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid variable path %q: %w", path, err)
	}
	pathCache.Store(path, x)
	return x, nil
}

// Lookup returns the value at path in data.
func Lookup(data any, path string) (any, bool) {
	x, err := compile(strings.TrimSpace(path))
	if err != nil {
		return nil, false
	}
	results := x.Get(data)
	if len(results) == 0 {
		return nil, false
	}
	if len(results) == 1 {
		return results[0], true
	}
	return results, true
}

// Render substitutes every placeholder in tpl. Unknown variables render as
// the empty string; use Missing to find them beforehand.
func Render(tpl string, vars map[string]any) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}
	return placeholderRe.ReplaceAllStringFunc(tpl, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := Lookup(vars, path)
		if !ok {
			return ""
		}
		return Stringify(v)
	})
}

// Variables lists the variable paths referenced by tpl in order of first use.
func Variables(tpl string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Missing lists the variables of tpl that vars cannot resolve.
func Missing(tpl string, vars map[string]any) []string {
	var out []string
	for _, path := range Variables(tpl) {
		if _, ok := Lookup(vars, path); !ok {
			out = append(out, path)
		}
	}
	return out
}

// Stringify renders scalars with %v and composite values as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any, map[string]string, []string:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
