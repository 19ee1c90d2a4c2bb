package persona

import (
	"regexp"
	"strings"
)

// questionStarters are interrogative openings that mark an agent message
// as requiring a reply even without a question mark.
var questionStarters = []string{
	"how ",
	"what ",
	"which ",
	"when ",
	"where ",
	"why ",
	"do you ",
	"are you ",
	"on a scale ",
}

// stopPhrases are closing-summary literals the agent emits when it has
// finished gathering information.
var stopPhrases = []string{
	"i've gathered all the information i need",
	"based on our conversation",
	"would you like to continue with",
}

var (
	trailingColonRe = regexp.MustCompile(`:\s*$`)
	questionSegRe   = regexp.MustCompile(`[^?.!]*\?`)
)

// IsQuestion reports whether the agent message asks something the
// persona should answer.
func IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, start := range questionStarters {
		if strings.HasPrefix(lower, start) {
			return true
		}
	}
	return trailingColonRe.MatchString(trimmed)
}

// StopCondition reports whether the agent message is a final
// summary/closing message. Beyond the fixed closing phrases, a long
// multi-paragraph message (>= 80 words across >= 2 paragraphs) is
// treated as a summary.
func StopCondition(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range stopPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	words := len(strings.Fields(text))
	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	return words >= 80 && paragraphs >= 2
}

// ExtractQuestions returns the question-mark-terminated segments of an
// agent message, in order. Used to collect the session's question set
// for the deduplicator.
func ExtractQuestions(text string) []string {
	if text == "" {
		return nil
	}
	matches := questionSegRe.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if q := strings.TrimSpace(m); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// LastQuestion returns the final question of an agent message, or ""
// when it asks none.
func LastQuestion(text string) string {
	qs := ExtractQuestions(text)
	if len(qs) == 0 {
		return ""
	}
	return qs[len(qs)-1]
}
