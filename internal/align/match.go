package align

import (
	"unicode/utf8"

	"github.com/rbright/hifz/internal/arabic"
)

const (
	// fuzzyMinLen is the shortest expected word that tolerates any difference.
	fuzzyMinLen = 4
	// longWordLen is the length above which two differences are tolerated instead of one.
	longWordLen = 5
	maxLenDelta = 2
	// combineMargin bounds how far past the expected length concatenation may grow.
	combineMargin = 5
	// minDeferLen is the shortest interim prefix that waits for a revision.
	minDeferLen = 2
)

// Rule names the step that decided a candidate word.
type Rule int

const (
	RuleExact Rule = iota
	RuleFuzzy
	RuleCombined
	RuleContained
	RuleDeferred
	RuleSkipped
	ruleCount
)

func (r Rule) String() string {
	switch r {
	case RuleExact:
		return "exact"
	case RuleFuzzy:
		return "fuzzy"
	case RuleCombined:
		return "combined"
	case RuleContained:
		return "contained"
	case RuleDeferred:
		return "deferred"
	case RuleSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome reports what one Feed call did.
type Outcome struct {
	// Confirmed holds newly confirmed tokens in reference order; Rules is parallel to it.
	Confirmed []Token
	Rules     []Rule
	Counts    [ruleCount]int
	Deferred  bool
	Cursor    int
	Complete  bool
}

// Count returns how many candidates rule decided during the call.
func (o Outcome) Count(rule Rule) int {
	if rule < 0 || rule >= ruleCount {
		return 0
	}
	return o.Counts[rule]
}

// Rules lists every rule in evaluation order.
func Rules() []Rule {
	return []Rule{RuleExact, RuleFuzzy, RuleCombined, RuleContained, RuleDeferred, RuleSkipped}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// fuzzyMatch compares by positional mismatches plus the length difference.
// This is deliberately not an edit distance: a transposition counts as two.
func fuzzyMatch(spoken, expected string) bool {
	if spoken == expected {
		return true
	}
	s := []rune(spoken)
	e := []rune(expected)
	if len(e) < fuzzyMinLen {
		return false
	}

	delta := len(s) - len(e)
	if delta < 0 {
		delta = -delta
	}
	if delta > maxLenDelta {
		return false
	}

	shared := min(len(s), len(e))
	distance := delta
	for i := 0; i < shared; i++ {
		if s[i] != e[i] {
			distance++
		}
	}

	allowed := 1
	if len(e) > longWordLen {
		allowed = 2
	}
	return distance <= allowed
}

// combinedMatch joins candidates[0] with following words until the result matches
// expected or grows too long. It returns how many candidates were joined, or 0.
func combinedMatch(candidates []string, expected string, fuzzy bool) int {
	if len(candidates) < 2 {
		return 0
	}
	limit := runeLen(expected) + combineMargin
	combined := candidates[0]
	for n := 1; n < len(candidates) && runeLen(combined) < limit; n++ {
		combined += candidates[n]
		joined := arabic.Normalize(combined)
		if joined == expected || (fuzzy && fuzzyMatch(joined, expected)) {
			return n + 1
		}
	}
	return 0
}
