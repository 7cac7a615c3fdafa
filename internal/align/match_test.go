package align

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		name     string
		spoken   string
		expected string
		want     bool
	}{
		{name: "identical", spoken: "الرحمن", expected: "الرحمن", want: true},
		{name: "six letters two trailing mismatches", spoken: "الرحيم", expected: "الرحمن", want: true},
		{name: "six letters three trailing mismatches", spoken: "الرجيم", expected: "الرحمن", want: false},
		{name: "five letters one mismatch", spoken: "العلم", expected: "العمم", want: true},
		{name: "five letters two mismatches", spoken: "الحلم", expected: "العمم", want: false},
		{name: "four letters one extra letter", spoken: "احدا", expected: "احد", want: false},
		{name: "three letters never fuzzy", spoken: "بسن", expected: "بسم", want: false},
		{name: "length difference above two", spoken: "ال", expected: "الرحمن", want: false},
		{name: "longer spoken within delta", spoken: "الرحمنن", expected: "الرحمن", want: true},
		{name: "transposition counts twice", spoken: "المقتسيم", expected: "المستقيم", want: true},
		{name: "one substitution in five letters", spoken: "الهمد", expected: "الحمد", want: true},
		{name: "swapped pair in four letters", spoken: "لاله", expected: "الله", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, fuzzyMatch(tc.spoken, tc.expected))
		})
	}
}

func TestCombinedMatch(t *testing.T) {
	require.Equal(t, 2, combinedMatch([]string{"احسن", "وا"}, "احسنوا", false))
	require.Equal(t, 3, combinedMatch([]string{"ال", "رح", "من"}, "الرحمن", false))
	require.Equal(t, 0, combinedMatch([]string{"احسن"}, "احسنوا", true))
	require.Equal(t, 0, combinedMatch([]string{"كتب", "قلم"}, "الرحمن", true))
	require.Equal(t, 2, combinedMatch([]string{"ال", "رحيم"}, "الرحمن", true))
	require.Equal(t, 0, combinedMatch([]string{"ال", "رحيم"}, "الرحمن", false))
}

func TestCombinedMatchStopsPastLengthMargin(t *testing.T) {
	// "ا" + 8 letters already exceeds len("احد")+5, so the matching tail is never joined.
	require.Equal(t, 0, combinedMatch([]string{"ا", "حدحدحدحد", "احد"}, "احد", true))
	require.Equal(t, 0, combinedMatch([]string{"ابراهيم", "ب"}, "ب", true))
}

func TestRuleString(t *testing.T) {
	names := make([]string, 0, len(Rules()))
	for _, rule := range Rules() {
		names = append(names, rule.String())
	}
	require.Equal(t, []string{"exact", "fuzzy", "combined", "contained", "deferred", "skipped"}, names)
	require.Equal(t, "unknown", Rule(42).String())
}
