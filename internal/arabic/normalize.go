// Package arabic canonicalizes Arabic text so two renderings of the same spoken word compare equal.
package arabic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	tatweel    = '\u0640'
	alef       = 'ا'
	waw        = 'و'
	ya         = 'ي'
	ha         = 'ه'
	taMarbuta  = 'ة'
	alefMaqsur = 'ى'
)

// isMark reports tashkeel, superscript alef, and Quranic annotation marks.
func isMark(r rune) bool {
	return (r >= '\u064B' && r <= '\u065F') || r == '\u0670' || (r >= '\u06D6' && r <= '\u06ED')
}

func isArabicOrSpace(r rune) bool {
	return (r >= '\u0600' && r <= '\u06FF') || unicode.IsSpace(r)
}

func fold(r rune) rune {
	switch r {
	case 'أ', 'إ', 'آ', 'ٱ', 'ء', 'ؤ', 'ئ':
		return alef
	case alefMaqsur:
		return ya
	case taMarbuta:
		return ha
	default:
		return r
	}
}

// matchChain is rebuilt per call; transform.Transformer values carry state.
func matchChain() transform.Transformer {
	return transform.Chain(
		runes.Remove(runes.Predicate(isMark)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel })),
		runes.Map(fold),
		runes.Remove(runes.Predicate(func(r rune) bool { return !isArabicOrSpace(r) })),
	)
}

// Normalize returns the lossy comparison form of raw.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	// The chain only removes and maps runes, so it cannot fail on valid input.
	stripped, _, err := transform.String(matchChain(), raw)
	if err != nil {
		return ""
	}

	joined := strings.Join(strings.Fields(stripped), " ")
	return collapseRuns(joined)
}

// collapseRuns squeezes repeated alef and waw, which recognizers emit for elongated vowels.
func collapseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		if r == prev && (r == alef || r == waw) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Tokens normalizes raw and splits it into comparable words.
func Tokens(raw string) []string {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// DisplayTokens splits raw into words for rendering, keeping diacritics.
func DisplayTokens(raw string) []string {
	return strings.Fields(strings.ReplaceAll(raw, string(tatweel), ""))
}
