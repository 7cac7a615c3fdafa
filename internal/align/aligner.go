// Package align matches a stream of revisable recognizer hypotheses against a fixed reference passage.
package align

import (
	"strings"

	"github.com/rbright/hifz/internal/arabic"
	"github.com/rbright/hifz/internal/passage"
)

// Token is one reference word: Display keeps the original script, Key is the comparison form.
type Token struct {
	Display string
	Key     string
	Verse   int
}

// Segment is one delivery from the recognizer. Segments sharing ResultIndex
// are revisions of the same utterance and re-transcribe it from its start.
type Segment struct {
	ResultIndex int
	Text        string
	Final       bool
}

// Reference builds the ordered reference tokens for verses.
func Reference(verses []passage.Verse) []Token {
	tokens := make([]Token, 0, len(verses)*8)
	for _, verse := range verses {
		for _, word := range arabic.DisplayTokens(verse.Text) {
			key := arabic.Normalize(word)
			if key == "" {
				// Standalone marks (sajda, hizb) are never spoken.
				continue
			}
			tokens = append(tokens, Token{Display: word, Key: key, Verse: verse.Number})
		}
	}
	return tokens
}

// revision tracks the open utterance: inactive, or result N with K words consumed.
type revision struct {
	active   bool
	index    int
	consumed int
}

// Aligner advances a cursor over the reference as hypothesis segments arrive.
// It is not safe for concurrent use.
type Aligner struct {
	ref    []Token
	cursor int
	rev    revision
}

// New constructs an aligner positioned at the start of ref.
func New(ref []Token) *Aligner {
	a := &Aligner{}
	a.Reset(ref)
	return a
}

// Reset replaces the reference and clears the cursor and revision state.
func (a *Aligner) Reset(ref []Token) {
	a.ref = append([]Token(nil), ref...)
	a.cursor = 0
	a.rev = revision{}
}

// EndRevision closes the open utterance so the next segment starts a fresh one.
func (a *Aligner) EndRevision() {
	a.rev = revision{}
}

// Cursor returns the number of confirmed reference tokens.
func (a *Aligner) Cursor() int {
	return a.cursor
}

// Len returns the reference length.
func (a *Aligner) Len() int {
	return len(a.ref)
}

// Done reports whether every reference token is confirmed.
func (a *Aligner) Done() bool {
	return a.cursor >= len(a.ref)
}

// Reference returns a copy of the active reference tokens.
func (a *Aligner) Reference() []Token {
	return append([]Token(nil), a.ref...)
}

// Feed consumes one segment and returns what it confirmed. It never fails:
// unmatched words are skipped and incomplete trailing words are deferred.
func (a *Aligner) Feed(seg Segment) (out Outcome) {
	// Every return, including segments with nothing new, reports the live cursor.
	defer func() {
		out.Cursor = a.cursor
		out.Complete = a.Done()
	}()

	if !a.rev.active || seg.ResultIndex != a.rev.index {
		a.rev = revision{active: true, index: seg.ResultIndex}
	}

	words := arabic.Tokens(seg.Text)
	if a.rev.consumed >= len(words) {
		return out
	}
	candidates := words[a.rev.consumed:]

	i := 0
	for i < len(candidates) {
		if a.Done() {
			break
		}
		expected := a.ref[a.cursor].Key
		word := candidates[i]

		if word == expected {
			a.confirm(&out, RuleExact, 1)
			i++
			continue
		}
		// A split word that joins back exactly beats a fuzzy read of its first
		// half, so exact-combined runs before fuzzy: "احسن وا" confirms
		// "احسنوا" as one combined word, not a fuzzy "احسن" plus a skip.
		if n := combinedMatch(candidates[i:], expected, false); n > 0 {
			a.confirm(&out, RuleCombined, n)
			i += n
			continue
		}
		if fuzzyMatch(word, expected) {
			a.confirm(&out, RuleFuzzy, 1)
			i++
			continue
		}
		if n := combinedMatch(candidates[i:], expected, true); n > 0 {
			a.confirm(&out, RuleCombined, n)
			i += n
			continue
		}
		if strings.HasPrefix(expected, word) {
			if (!seg.Final && runeLen(word) >= minDeferLen) || i == len(candidates)-1 {
				out.Deferred = true
				out.Counts[RuleDeferred]++
				break
			}
		}
		if strings.Contains(word, expected) || strings.Contains(expected, word) {
			a.confirm(&out, RuleContained, 1)
			i++
			continue
		}

		out.Counts[RuleSkipped]++
		a.rev.consumed++
		i++
	}
	return out
}

// confirm accepts the expected token, consuming n candidate words.
func (a *Aligner) confirm(out *Outcome, rule Rule, n int) {
	out.Confirmed = append(out.Confirmed, a.ref[a.cursor])
	out.Rules = append(out.Rules, rule)
	out.Counts[rule]++
	a.cursor++
	a.rev.consumed += n
}
