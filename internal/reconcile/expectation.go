package reconcile

import (
	"regexp"
	"strings"

	"agentprobe/internal/persona"
)

// Expectation is the set of backend steps a turn's messages predict.
type Expectation struct {
	IntentClassifier bool
	MainModel        bool
	Extraction       bool
	Memory           bool
	WebSearch        bool
}

// genericAcks are replies that carry no extractable answer.
var genericAcks = map[string]bool{
	"ok": true, "okay": true, "okay.": true, "yes": true, "no": true,
	"sure": true, "thanks": true, "thank you": true, "got it": true,
	"sounds good": true, "alright": true,
}

var (
	moneyRe    = regexp.MustCompile(`\$\s*\d|\d+\s*(k|K)\b|\b\d{4,}\b`)
	numberRe   = regexp.MustCompile(`\b\d+\b`)
	timelineRe = regexp.MustCompile(`(?i)\b(month|year|week|by\s+\w+\s*20\d\d|20\d\d|asap|flexible deadline)\b`)
)

// memoryCues mark a reply as revealing a durable personal constraint:
// budget, location, family size, or timeline.
var memoryCues = []string{
	"budget", "afford", "income", "down payment", "salary", "pay",
	"family", "kids", "children", "wife", "husband", "partner",
	"move", "relocat", "live in", "living in", "commute", "school",
	"bedroom", "bathroom", "condo", "house", "apartment", "town",
	"state", "area", "neighborhood", "quiet", "safe",
}

// propertySearchIntents are the classified intents that imply the
// backend should have run a web search.
var propertySearchIntents = []string{
	"property_search", "listing_search", "market_data",
}

// ExpectedSteps derives the backend steps a turn should have executed,
// purely from the messages and the classified intent. The intent comes
// from the actual intent record when present; expectation for the
// other steps never looks at the logs.
func ExpectedSteps(assistantMessage, userResponse string, catalog persona.FieldCatalog, intentResponse string) Expectation {
	exp := Expectation{
		// The pipeline classifies intent and generates a main response
		// on every turn, unconditionally.
		IntentClassifier: true,
		MainModel:        true,
	}

	reply := strings.ToLower(strings.TrimSpace(userResponse))

	// Answer extraction: the agent asked something and the reply is an
	// actual answer rather than a bare acknowledgement.
	if persona.IsQuestion(assistantMessage) && reply != "" && !genericAcks[strings.TrimRight(reply, ".!")] {
		exp.Extraction = answersCatalogField(reply, catalog)
	}

	// Memory extraction: the reply reveals a durable personal
	// constraint worth remembering across sessions.
	if reply != "" && !genericAcks[strings.TrimRight(reply, ".!")] {
		exp.Memory = revealsConstraint(reply)
	}

	// Web search: only a property-search classified turn needs
	// external listings or market data.
	intent := strings.ToLower(intentResponse)
	for _, wanted := range propertySearchIntents {
		if strings.Contains(intent, wanted) {
			exp.WebSearch = true
			break
		}
	}

	return exp
}

// answersCatalogField approximates "the reply answers one of the
// catalog fields": money amounts, counts, timelines, and direct field
// keyword mentions all count as answers to a question the agent posed.
func answersCatalogField(reply string, catalog persona.FieldCatalog) bool {
	if moneyRe.MatchString(reply) || numberRe.MatchString(reply) || timelineRe.MatchString(reply) {
		return true
	}
	for _, field := range catalog.Fields() {
		// annual_income_usd -> "annual income usd"; match on any word.
		for _, word := range strings.Split(strings.ReplaceAll(field, "_", " "), " ") {
			if len(word) >= 4 && strings.Contains(reply, word) {
				return true
			}
		}
	}
	return revealsConstraint(reply)
}

func revealsConstraint(reply string) bool {
	if moneyRe.MatchString(reply) || timelineRe.MatchString(reply) {
		return true
	}
	for _, cue := range memoryCues {
		if strings.Contains(reply, cue) {
			return true
		}
	}
	return false
}
