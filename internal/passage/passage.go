// Package passage loads reference verses from the alquran.cloud content API or from disk.
package passage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrNoVerses indicates a passage selection produced no verses.
var ErrNoVerses = errors.New("passage has no verses")

// Verse is one ayah of the selected surah.
type Verse struct {
	Number int
	Text   string
}

// Passage is an ordered run of verses from one surah edition.
type Passage struct {
	Surah   int
	Name    string
	Edition string
	Verses  []Verse
}

// surahEnvelope mirrors the alquran.cloud `/surah/{n}/{edition}` response.
type surahEnvelope struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Number        int    `json:"number"`
		Name          string `json:"name"`
		EnglishName   string `json:"englishName"`
		NumberOfAyahs int    `json:"numberOfAyahs"`
		Edition       struct {
			Identifier string `json:"identifier"`
		} `json:"edition"`
		Ayahs []struct {
			NumberInSurah int    `json:"numberInSurah"`
			Text          string `json:"text"`
		} `json:"ayahs"`
	} `json:"data"`
}

func decodeSurah(content []byte) (Passage, error) {
	var env surahEnvelope
	if err := json.Unmarshal(content, &env); err != nil {
		return Passage{}, fmt.Errorf("decode surah payload: %w", err)
	}
	if env.Code != 0 && env.Code != 200 {
		return Passage{}, fmt.Errorf("content api returned code %d (%s)", env.Code, env.Status)
	}
	if len(env.Data.Ayahs) == 0 {
		return Passage{}, ErrNoVerses
	}

	p := Passage{
		Surah:   env.Data.Number,
		Name:    strings.TrimSpace(env.Data.Name),
		Edition: env.Data.Edition.Identifier,
		Verses:  make([]Verse, 0, len(env.Data.Ayahs)),
	}
	for _, ayah := range env.Data.Ayahs {
		text := strings.TrimSpace(strings.TrimPrefix(ayah.Text, "\ufeff"))
		p.Verses = append(p.Verses, Verse{Number: ayah.NumberInSurah, Text: text})
	}
	return p.withoutBasmala(), nil
}

// LoadFile reads a surah payload saved from the content API.
func LoadFile(path string) (Passage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Passage{}, fmt.Errorf("read passage %q: %w", path, err)
	}
	p, err := decodeSurah(content)
	if err != nil {
		return Passage{}, fmt.Errorf("load passage %q: %w", path, err)
	}
	return p, nil
}

// Range returns verses from..to inclusive, clamped to the surah like the selection UI:
// from is kept within [1, n] and to within [from, n].
func Range(p Passage, from, to int) (Passage, error) {
	n := len(p.Verses)
	if n == 0 {
		return Passage{}, ErrNoVerses
	}
	if to <= 0 {
		to = n
	}
	start := min(max(from, 1), n)
	end := min(max(to, start), n)

	out := p
	out.Verses = append([]Verse(nil), p.Verses[start-1:end]...)
	return out, nil
}

// basmalaVariants lets the prefixed basmala match across editions and spellings.
var (
	basmalaVariants = map[rune]string{
		'ا': "اٱأإآ",
		'ة': "ةه",
		'ه': "هة",
		'ى': "ىا",
	}
	basmalaPattern = looseArabicPattern("بسم الله الرحمن الرحيم")
)

func looseArabicPattern(phrase string) *regexp.Regexp {
	const marks = `[\x{064B}-\x{065F}\x{0670}\x{06D6}-\x{06ED}\x{0640}]*`
	var b strings.Builder
	b.WriteString("^")
	for _, r := range phrase {
		if r == ' ' {
			b.WriteString(`\s*`)
			continue
		}
		variants, ok := basmalaVariants[r]
		if !ok {
			variants = string(r)
		}
		b.WriteString("[" + variants + "]" + marks + `\s*`)
	}
	return regexp.MustCompile(b.String())
}

// StripBasmala removes a leading basmala from text.
func StripBasmala(text string) string {
	return basmalaPattern.ReplaceAllString(text, "")
}

// withoutBasmala drops the basmala editions prefix to ayah 1. Al-Fatiha counts it as
// its first verse and At-Tawbah has none.
func (p Passage) withoutBasmala() Passage {
	if p.Surah == 1 || p.Surah == 9 || len(p.Verses) == 0 || p.Verses[0].Number != 1 {
		return p
	}
	stripped := strings.TrimSpace(StripBasmala(p.Verses[0].Text))
	if stripped == "" {
		return p
	}
	verses := append([]Verse(nil), p.Verses...)
	verses[0].Text = stripped
	p.Verses = verses
	return p
}
