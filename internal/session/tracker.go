package session

import (
	"sync"

	"github.com/rbright/hifz/internal/align"
)

// Update is the tracker-facing result of applying one segment.
type Update struct {
	Confirmed []align.Token
	// Position is the reference index of Confirmed[0].
	Position  int
	Rules     []align.Rule
	Skipped   int
	Deferred  bool
	Progress  float64
	// Completed is true only on the segment that confirmed the last token.
	Completed bool
}

// VerseGroup is a contiguous run of confirmed tokens from one verse.
type VerseGroup struct {
	Verse  int
	Tokens []align.Token
}

// Snapshot is one consistent read of tracker state.
type Snapshot struct {
	Confirmed int
	Total     int
	Progress  float64
	Verse     int
	Complete  bool
	Groups    []VerseGroup
}

// Tracker owns the aligner for one recitation and records confirmed tokens.
// Apply is called from the controller loop; readers may call from any goroutine.
type Tracker struct {
	mu        sync.RWMutex
	aligner   *align.Aligner
	confirmed []align.Token
}

// NewTracker constructs a tracker for the reference tokens.
func NewTracker(ref []align.Token) *Tracker {
	return &Tracker{aligner: align.New(ref)}
}

// Reset replaces the reference and drops all progress.
func (t *Tracker) Reset(ref []align.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aligner.Reset(ref)
	t.confirmed = nil
}

// Restart drops progress but keeps the current reference.
func (t *Tracker) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aligner.Reset(t.aligner.Reference())
	t.confirmed = nil
}

// EndRevision closes the open utterance group.
func (t *Tracker) EndRevision() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aligner.EndRevision()
}

// Apply feeds one segment. Segments arriving after completion are ignored.
func (t *Tracker) Apply(seg align.Segment) Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.aligner.Done() {
		return Update{Progress: t.progressLocked()}
	}

	position := len(t.confirmed)
	out := t.aligner.Feed(seg)
	t.confirmed = append(t.confirmed, out.Confirmed...)

	return Update{
		Confirmed: out.Confirmed,
		Position:  position,
		Rules:     out.Rules,
		Skipped:   out.Count(align.RuleSkipped),
		Deferred:  out.Deferred,
		Progress:  t.progressLocked(),
		Completed: out.Complete && len(out.Confirmed) > 0,
	}
}

// Progress returns the confirmed fraction in [0, 1].
func (t *Tracker) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progressLocked()
}

func (t *Tracker) progressLocked() float64 {
	return float64(len(t.confirmed)) / float64(max(1, t.aligner.Len()))
}

// Confirmed returns a copy of the confirmed tokens in reference order.
func (t *Tracker) Confirmed() []align.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]align.Token(nil), t.confirmed...)
}

// Complete reports whether every reference token is confirmed.
func (t *Tracker) Complete() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.aligner.Len() > 0 && t.aligner.Done()
}

// Len returns the reference length.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.aligner.Len()
}

// CurrentVerse returns the verse of the next unconfirmed token.
func (t *Tracker) CurrentVerse() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentVerseLocked()
}

func (t *Tracker) currentVerseLocked() (int, bool) {
	ref := t.aligner.Reference()
	cursor := t.aligner.Cursor()
	if cursor >= len(ref) {
		return 0, false
	}
	return ref[cursor].Verse, true
}

// Grouped returns confirmed tokens split into contiguous runs by verse.
func (t *Tracker) Grouped() []VerseGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return groupByVerse(t.confirmed)
}

// Snapshot returns all derived state under one lock.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	verse, _ := t.currentVerseLocked()
	return Snapshot{
		Confirmed: len(t.confirmed),
		Total:     t.aligner.Len(),
		Progress:  t.progressLocked(),
		Verse:     verse,
		Complete:  t.aligner.Len() > 0 && t.aligner.Done(),
		Groups:    groupByVerse(t.confirmed),
	}
}

func groupByVerse(tokens []align.Token) []VerseGroup {
	var groups []VerseGroup
	for _, tok := range tokens {
		if n := len(groups); n > 0 && groups[n-1].Verse == tok.Verse {
			groups[n-1].Tokens = append(groups[n-1].Tokens, tok)
			continue
		}
		groups = append(groups, VerseGroup{Verse: tok.Verse, Tokens: []align.Token{tok}})
	}
	return groups
}
