// Package render draws recitation progress in the terminal.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rbright/hifz/internal/session"
)

const clearScreen = "\x1b[H\x1b[2J"

// View writes one frame per observed snapshot.
type View struct {
	mu    sync.Mutex
	out   io.Writer
	title string
	// live redraws in place instead of appending frames.
	live bool
}

// New returns a View writing to out. title heads every frame when non-empty.
func New(out io.Writer, title string, live bool) *View {
	return &View{out: out, title: title, live: live}
}

// Observe implements session.Observer.
func (v *View) Observe(snapshot session.Snapshot) {
	frame := Frame(v.title, snapshot)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.live {
		_, _ = io.WriteString(v.out, clearScreen)
	}
	_, _ = io.WriteString(v.out, frame)
}

// Frame renders confirmed verse groups, the cursor, and the completion line.
func Frame(title string, snapshot session.Snapshot) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}

	cursorShown := false
	for _, group := range snapshot.Groups {
		words := make([]string, 0, len(group.Tokens))
		for _, tok := range group.Tokens {
			words = append(words, tok.Display)
		}
		b.WriteString(strings.Join(words, " "))
		b.WriteString(" ")
		b.WriteString(VerseMarker(group.Verse))
		if !snapshot.Complete && group.Verse == snapshot.Verse {
			b.WriteString(" |")
			cursorShown = true
		}
		b.WriteString("\n")
	}

	if !snapshot.Complete && snapshot.Verse > 0 && !cursorShown {
		b.WriteString("| ")
		b.WriteString(VerseMarker(snapshot.Verse))
		b.WriteString("\n")
	}

	if len(snapshot.Groups) > 0 || snapshot.Verse > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "إنجاز: %d%%\n", Percent(snapshot.Progress))
	return b.String()
}

// Percent rounds progress to a whole percentage, halves away from zero.
func Percent(progress float64) int {
	return int(math.Round(progress * 100))
}

// VerseMarker wraps n in ornate parentheses using Arabic-Indic digits.
func VerseMarker(n int) string {
	return "﴿" + ArabicDigits(n) + "﴾"
}

// ArabicDigits formats n with Arabic-Indic digits.
func ArabicDigits(n int) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return '٠' + (r - '0')
		}
		return r
	}, strconv.Itoa(n))
}
