// Package resolver decides which intermediate language, if any, a
// translation passes through.
package resolver

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/valpere/polytran/internal/errs"
)

// Wildcard matches any language on either side of a rule.
const Wildcard = "all"

// Rule routes source→target through Intermediate. The empty string or "none"
// means translate directly.
type Rule struct {
	Source       string `mapstructure:"source" json:"source" yaml:"source"`
	Target       string `mapstructure:"target" json:"target" yaml:"target"`
	Intermediate string `mapstructure:"intermediate" json:"intermediate" yaml:"intermediate"`
}

// Path is the ordered list of languages a translation traverses: either
// [source, target] or [source, intermediate, target].
type Path []string

// Hops returns the consecutive language pairs of the path.
func (p Path) Hops() [][2]string {
	if len(p) < 2 {
		return nil
	}
	hops := make([][2]string, 0, len(p)-1)
	for i := 0; i+1 < len(p); i++ {
		hops = append(hops, [2]string{p[i], p[i+1]})
	}
	return hops
}

// HopKey is the mapping key of one hop, e.g. "en_to_fr".
func HopKey(source, target string) string {
	return source + "_to_" + target
}

// Score rates how specifically a rule matches source and target. Zero means
// the rule does not apply.
func Score(r Rule, source, target string) int {
	src := matchSide(r.Source, source)
	tgt := matchSide(r.Target, target)

	switch {
	case src == exact && tgt == exact:
		return 3
	case src == exact && tgt == wild, src == wild && tgt == exact:
		return 2
	case src == wild && tgt == wild:
		return 1
	}
	return 0
}

type sideMatch int

const (
	none sideMatch = iota
	wild
	exact
)

func matchSide(ruleLang, lang string) sideMatch {
	ruleLang = Canonical(ruleLang)
	if ruleLang == Wildcard {
		return wild
	}
	if ruleLang != "" && ruleLang == Canonical(lang) {
		return exact
	}
	return none
}

// Resolve returns the language path for source→target. Among matching rules
// the highest score wins; ties go to the later rule. The rule slice is never
// modified. Languages in the returned path are canonical; source and target
// are expected to differ.
func Resolve(source, target string, rules []Rule) Path {
	source, target = Canonical(source), Canonical(target)
	direct := Path{source, target}

	best := -1
	bestScore := 0
	for i, r := range rules {
		if s := Score(r, source, target); s > 0 && s >= bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return direct
	}

	mid := Canonical(rules[best].Intermediate)
	if mid == "" || mid == "none" || mid == Wildcard || mid == source || mid == target {
		return direct
	}
	return Path{source, mid, target}
}

// CheckPair reports a validation error when source or target is missing or
// both name the same language. Resolve assumes the pair passed this check.
func CheckPair(source, target string) error {
	source, target = Canonical(source), Canonical(target)
	if source == "" || target == "" {
		return errs.New(errs.KindValidation, "source and target languages are required")
	}
	if source == target {
		return errs.New(errs.KindValidation, "source and target language are both %q", source)
	}
	return nil
}

// Canonical lowercases and trims a language code, normalising BCP 47 tags
// (e.g. "PT_br" → "pt-br") and leaving the wildcard and "none" untouched.
func Canonical(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" || c == Wildcard || c == "none" {
		return c
	}
	c = strings.ReplaceAll(c, "_", "-")
	if tag, err := language.Parse(c); err == nil {
		return strings.ToLower(tag.String())
	}
	return c
}
