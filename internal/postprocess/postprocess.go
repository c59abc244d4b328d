// Package postprocess turns raw LLM output into something the pipeline can
// use: plain text stripped of reasoning blocks and prompt echoes, or a
// decoded JSON object.
package postprocess

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned by DecodeObject when the text holds no object.
var ErrNoJSONObject = errors.New("response contains no JSON object")

var (
	// RE2 has no backreferences, so each tag pair is spelled out.
	thinkingBlockRe = regexp.MustCompile(
		`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
	)
	// opened but never closed: the model was cut off mid-thought
	truncatedThinkingRe = regexp.MustCompile(
		`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
	)

	echoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:refined |polished |translated |improved )?(?:translation|text|content)\s*:`),
		regexp.MustCompile(`(?i)^(?:the )?(?:refined |polished )?(?:translation|translated text)\s*:`),
		regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the)? (?:refined |polished |translated )?(?:translation|text)\s*:`),
	}

	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\n?(.*?)\\s*```$")
)

// Clean strips reasoning blocks, prompt echoes and wrapping quotes.
func Clean(text string) string {
	text = StripThinking(text)
	text = stripEchoes(text)
	text = stripQuotes(text)
	return strings.TrimSpace(text)
}

// StripThinking removes complete and truncated reasoning blocks.
func StripThinking(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func stripEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// stripQuotes removes one matching pair of outer quotes: "…" '…' «…» “…” ‘…’
func stripQuotes(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}

// StripCodeFence unwraps a response that is entirely one fenced block.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// DecodeObject extracts and decodes the JSON object in an LLM response. It
// tolerates reasoning blocks, a code fence and prose around the object.
func DecodeObject(text string) (map[string]any, error) {
	text = StripCodeFence(StripThinking(text))

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSONObject
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}
