package session

import (
	"sync"
	"testing"

	"github.com/rbright/hifz/internal/align"
	"github.com/rbright/hifz/internal/passage"
	"github.com/stretchr/testify/require"
)

// ikhlas is surah 112 without diacritics: 4 + 2 + 4 + 5 words.
var ikhlas = []passage.Verse{
	{Number: 1, Text: "قل هو الله احد"},
	{Number: 2, Text: "الله الصمد"},
	{Number: 3, Text: "لم يلد ولم يولد"},
	{Number: 4, Text: "ولم يكن له كفوا احد"},
}

const (
	ikhlasVerse1 = "قل هو الله احد"
	ikhlasRest   = "الله الصمد لم يلد ولم يولد ولم يكن له كفوا احد"
)

func ikhlasTracker() *Tracker {
	return NewTracker(align.Reference(ikhlas))
}

func TestTrackerApplyReportsConfirmedRun(t *testing.T) {
	tr := ikhlasTracker()
	require.Equal(t, 15, tr.Len())

	update := tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1, Final: true})
	require.Len(t, update.Confirmed, 4)
	require.Equal(t, 0, update.Position)
	require.Equal(t, []align.Rule{align.RuleExact, align.RuleExact, align.RuleExact, align.RuleExact}, update.Rules)
	require.InDelta(t, 4.0/15.0, update.Progress, 1e-9)
	require.False(t, update.Completed)

	verse, ok := tr.CurrentVerse()
	require.True(t, ok)
	require.Equal(t, 2, verse)

	groups := tr.Grouped()
	require.Len(t, groups, 1)
	require.Equal(t, 1, groups[0].Verse)
	require.Len(t, groups[0].Tokens, 4)
}

func TestTrackerCompletesOnce(t *testing.T) {
	tr := ikhlasTracker()
	tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1, Final: true})

	update := tr.Apply(align.Segment{ResultIndex: 1, Text: ikhlasRest, Final: true})
	require.True(t, update.Completed)
	require.Equal(t, 4, update.Position)
	require.Len(t, update.Confirmed, 11)
	require.InDelta(t, 1.0, update.Progress, 1e-9)
	require.True(t, tr.Complete())

	_, ok := tr.CurrentVerse()
	require.False(t, ok)

	again := tr.Apply(align.Segment{ResultIndex: 2, Text: "قل هو", Final: true})
	require.False(t, again.Completed)
	require.Empty(t, again.Confirmed)
	require.InDelta(t, 1.0, again.Progress, 1e-9)

	var verses []int
	for _, group := range tr.Grouped() {
		verses = append(verses, group.Verse)
	}
	require.Equal(t, []int{1, 2, 3, 4}, verses)
}

func TestTrackerRevisionsDoNotDoubleCount(t *testing.T) {
	tr := ikhlasTracker()
	tr.Apply(align.Segment{ResultIndex: 0, Text: "قل هو"})
	tr.Apply(align.Segment{ResultIndex: 0, Text: "قل هو الله"})
	update := tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1, Final: true})

	require.Equal(t, 3, update.Position)
	require.Len(t, update.Confirmed, 1)
	require.Len(t, tr.Confirmed(), 4)
}

func TestTrackerEndRevisionReusesResultIndex(t *testing.T) {
	tr := ikhlasTracker()
	tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1, Final: true})
	tr.EndRevision()

	update := tr.Apply(align.Segment{ResultIndex: 0, Text: "الله الصمد", Final: true})
	require.Len(t, update.Confirmed, 2)
	require.Equal(t, 2, update.Confirmed[0].Verse)
}

func TestTrackerRestartAndReset(t *testing.T) {
	tr := ikhlasTracker()
	tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1, Final: true})

	tr.Restart()
	require.Zero(t, tr.Progress())
	require.Equal(t, 15, tr.Len())
	verse, ok := tr.CurrentVerse()
	require.True(t, ok)
	require.Equal(t, 1, verse)

	tr.Apply(align.Segment{ResultIndex: 1, Text: "قل هو", Final: true})
	require.Positive(t, tr.Progress())
	require.Len(t, tr.Confirmed(), 2)

	tr.Reset(align.Reference(ikhlas[:1]))
	require.Zero(t, tr.Progress())
	require.Empty(t, tr.Confirmed())
	require.Equal(t, 4, tr.Len())
	update := tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1, Final: true})
	require.True(t, update.Completed)
}

func TestTrackerEmptyReference(t *testing.T) {
	tr := NewTracker(nil)
	require.Zero(t, tr.Progress())
	require.False(t, tr.Complete())
	_, ok := tr.CurrentVerse()
	require.False(t, ok)

	snapshot := tr.Snapshot()
	require.Zero(t, snapshot.Total)
	require.False(t, snapshot.Complete)
	require.Empty(t, snapshot.Groups)
}

func TestTrackerSnapshotIsConsistent(t *testing.T) {
	tr := ikhlasTracker()
	tr.Apply(align.Segment{ResultIndex: 0, Text: ikhlasVerse1 + " الله", Final: true})

	snapshot := tr.Snapshot()
	require.Equal(t, 5, snapshot.Confirmed)
	require.Equal(t, 15, snapshot.Total)
	require.Equal(t, 2, snapshot.Verse)
	require.False(t, snapshot.Complete)
	require.Len(t, snapshot.Groups, 2)
	require.Len(t, snapshot.Groups[1].Tokens, 1)
}

func TestTrackerConcurrentReaders(t *testing.T) {
	tr := ikhlasTracker()
	words := []string{"قل", "قل هو", "قل هو الله", ikhlasVerse1}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			snapshot := tr.Snapshot()
			require.LessOrEqual(t, snapshot.Confirmed, snapshot.Total)
		}
	}()

	for _, text := range words {
		tr.Apply(align.Segment{ResultIndex: 0, Text: text})
	}
	wg.Wait()
	require.Equal(t, 4, len(tr.Confirmed()))
}
