// Package intent classifies a raw query into casual, narrative or tabular
// before any retrieval budget is spent, and decides how deep the answer
// should go.
package intent

import (
	"regexp"
	"strings"
	"unicode"

	"docsense/internal/domain"
)

// Conversational fillers that skip retrieval entirely.
var casualPhrases = []string{
	"hi", "hello", "hey", "ok", "okay", "thanks", "thank you",
	"bye", "goodbye", "yes", "yeah", "no", "nope", "sure",
	"got it", "alright", "cool", "nice", "good", "great",
	"sup", "what's up", "wassup", "howdy",
}

// Explanatory and analytical cues. Checked before the extraction triggers:
// a query like "what other data is in it?" contains the weak extraction
// signal "data" but is an explanatory request, and classifying it as an
// extraction used to make every answer come out as a table.
var narrativeCues = []string{
	"what is this about", "what does this mean", "explain", "describe",
	"tell me about", "what is", "what's", "why", "how does",
	"what other", "what else", "anything else", "more information",
	"summary", "summarize", "overview", "context", "background", "purpose",
	"analyze", "interpret", "discuss", "compare", "contrast",
	"relationship", "impact", "significance", "implications",
	"tell me", "can you tell", "could you explain", "help me understand",
}

// Explicit extraction-intent phrases. Deliberately narrow: single weak
// keywords are not enough to flip into table output.
var tabularTriggers = []string{
	"extract all", "extract data", "extract values", "give me all",
	"show all data", "list all", "get all values", "show data",
	"at each location", "by location", "at each well", "per location",
	"each location", "all locations", "every location",
	"in a table", "as a table", "table format", "spreadsheet",
	"show table", "as table", "in table",
	"pressure at", "temperature at", "volume at", "value of", "values for",
}

var interrogatives = map[string]struct{}{
	"what": {}, "why": {}, "how": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "is": {}, "are": {}, "do": {}, "does": {},
	"can": {}, "could": {}, "would": {}, "should": {},
}

var unitPattern = regexp.MustCompile(`\b(psig?|bbls?|barrels?|degf|degc|mmbtu|mcf|kg|lbs?|api)\b`)

// Cues that push a narrative answer from brief to research-grade.
var detailTriggers = []string{
	"analyze", "discuss", "compare", "contrast", "evaluate",
	"explain in detail", "comprehensive", "in depth", "thoroughly",
	"what are the implications", "how does", "why does",
	"describe the relationship", "what factors", "reasoning behind",
	"pros and cons", "advantages and disadvantages", "strengths and weaknesses",
	"tell me about", "elaborate", "detail",
}

// Prose markers that must not appear ahead of a tabular extraction.
var forbiddenPreamble = []string{
	"based on the", "here is the", "introduction", "key insights",
	"findings", "in summary", "conclusion", "as we can see",
	"the data shows", "from the table", "analysis reveals", "observations",
}

type rule struct {
	name   string
	match  func(query string, tokens []string) bool
	intent domain.Intent
}

// Classifier evaluates an ordered rule table over the normalized query.
// Precedence is fixed; the final rule always matches, so classification
// never fails.
type Classifier struct {
	rules []rule
}

func NewClassifier() *Classifier {
	return &Classifier{rules: []rule{
		{
			name: "casual-phrase",
			match: func(q string, tokens []string) bool {
				if len(tokens) > 4 {
					return false
				}
				for _, p := range casualPhrases {
					if hasPhrasePrefix(q, p) {
						return true
					}
				}
				return false
			},
			intent: domain.IntentCasual,
		},
		{
			name: "short-non-question",
			match: func(q string, tokens []string) bool {
				if len(tokens) > 2 || strings.Contains(q, "?") {
					return false
				}
				for _, tok := range tokens {
					if _, ok := interrogatives[strings.Trim(tok, "?!.,")]; ok {
						return false
					}
				}
				return len(tokens) > 0
			},
			intent: domain.IntentCasual,
		},
		{
			name: "narrative-cue",
			match: func(q string, tokens []string) bool {
				return containsAny(q, narrativeCues)
			},
			intent: domain.IntentNarrative,
		},
		{
			name: "tabular-trigger",
			match: func(q string, tokens []string) bool {
				return containsAny(q, tabularTriggers)
			},
			intent: domain.IntentTabular,
		},
		{
			name: "unit-density",
			match: func(q string, tokens []string) bool {
				units := map[string]struct{}{}
				for _, m := range unitPattern.FindAllString(q, -1) {
					units[m] = struct{}{}
				}
				return len(units) >= 2
			},
			intent: domain.IntentTabular,
		},
		{
			name:   "default-narrative",
			match:  func(string, []string) bool { return true },
			intent: domain.IntentNarrative,
		},
	}}
}

// Classify maps a raw query to an intent. It never errs: the rule table
// bottoms out at narrative.
func (c *Classifier) Classify(query string) domain.Intent {
	normalized := strings.ToLower(strings.TrimSpace(query))
	tokens := strings.Fields(normalized)
	for _, r := range c.rules {
		if r.match(normalized, tokens) {
			return r.intent
		}
	}
	return domain.IntentNarrative
}

// DetailLevel decides between a brief and a research-grade answer from the
// query alone. Long questions get the detailed treatment by default.
func (c *Classifier) DetailLevel(query string) domain.DetailLevel {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if containsAny(normalized, detailTriggers) {
		return domain.DetailDetailed
	}
	if len(strings.Fields(normalized)) > 15 {
		return domain.DetailDetailed
	}
	return domain.DetailBrief
}

// ValidateTabular flags a tabular-extraction response that drifted into
// prose. This is a post-hoc content check on the generated text, not a hard
// constraint on the model: a short run of whitespace or labelling ahead of
// the first table row is tolerated.
func ValidateTabular(response string) (bool, string) {
	tableStart := strings.IndexAny(response, "|{")
	if tableStart < 0 {
		return false, "no table or record output found"
	}
	preamble := strings.TrimSpace(response[:tableStart])
	if len(preamble) > 20 {
		return false, "prose detected before first table row"
	}
	lower := strings.ToLower(preamble)
	for _, phrase := range forbiddenPreamble {
		if strings.Contains(lower, phrase) {
			return false, "forbidden preamble phrase: " + phrase
		}
	}
	return true, ""
}

func containsAny(q string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// hasPhrasePrefix reports whether q is the phrase itself or starts with the
// phrase followed by a non-letter, so "hi" never matches "highlight".
func hasPhrasePrefix(q, phrase string) bool {
	if !strings.HasPrefix(q, phrase) {
		return false
	}
	if len(q) == len(phrase) {
		return true
	}
	next := rune(q[len(phrase)])
	return !unicode.IsLetter(next) && !unicode.IsDigit(next)
}
