package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/hifz/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueError
)

const (
	toneRate   = 16000
	noteGap    = 22 * time.Millisecond
	chimeLevel = 0.18
)

// cue pairs an optional user sound file with a synthesized fallback.
type cue struct {
	file func(config.IndicatorConfig) string
	pcm  []int16
}

type note struct {
	hz float64
	d  time.Duration
}

// Rising for start, a single low note for stop, an ascending triad when the
// passage is done, and a falling buzz for errors.
var cues = map[cueKind]cue{
	cueStart: {
		file: func(c config.IndicatorConfig) string { return c.SoundStartFile },
		pcm:  chime(note{660, 70 * time.Millisecond}, note{880, 90 * time.Millisecond}),
	},
	cueStop: {
		file: func(c config.IndicatorConfig) string { return c.SoundStopFile },
		pcm:  chime(note{620, 120 * time.Millisecond}),
	},
	cueComplete: {
		file: func(c config.IndicatorConfig) string { return c.SoundCompleteFile },
		pcm:  chime(note{740, 65 * time.Millisecond}, note{988, 65 * time.Millisecond}, note{1319, 120 * time.Millisecond}),
	},
	cueError: {
		file: func(c config.IndicatorConfig) string { return c.SoundErrorFile },
		pcm:  buzz(130, 65, 300*time.Millisecond, 0.2),
	},
}

// filePlayers are tried in order for user cue files.
var filePlayers = [][]string{
	{"pw-play", "--media-role", "Notification"},
	{"paplay"},
}

func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := cues[kind]
	if !ok {
		return nil
	}
	if path := cuePath(kind, cfg); path != "" {
		if err := playFile(ctx, path); err == nil {
			return nil
		}
	}
	return playPCM(c.pcm)
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	c, ok := cues[kind]
	if !ok {
		return ""
	}
	return expandHome(c.file(cfg))
}

func expandHome(raw string) string {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, rest)
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cue file: %w", err)
	}
	var errs []error
	for _, player := range filePlayers {
		if _, err := exec.LookPath(player[0]); err != nil {
			errs = append(errs, err)
			continue
		}
		args := append(append([]string(nil), player[1:]...), path)
		if err := exec.CommandContext(ctx, player[0], args...).Run(); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", player[0], path, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

func playPCM(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("hifz"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		pulse.Int16Reader((&pcmSource{samples: samples}).read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(toneRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("hifz cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}

// pcmSource feeds a fixed buffer to Pulse and signals EndOfData with the last samples.
type pcmSource struct {
	samples []int16
	off     int
}

func (s *pcmSource) read(buf []int16) (int, error) {
	n := copy(buf, s.samples[s.off:])
	s.off += n
	if s.off >= len(s.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}

// chime renders sine notes separated by short silences.
func chime(notes ...note) []int16 {
	var pcm []int16
	for i, n := range notes {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(noteGap))...)
		}
		pcm = append(pcm, sine(n, chimeLevel)...)
	}
	return pcm
}

// sine renders one note with a linear fade at both ends.
func sine(n note, level float64) []int16 {
	count := sampleCount(n.d)
	if count == 0 || n.hz <= 0 || level <= 0 {
		return nil
	}
	fade := float64(min(max(count/10, 1), toneRate/200))
	out := make([]int16, count)
	for i := range out {
		env := min(1, float64(i)/fade, float64(count-1-i)/fade)
		out[i] = toInt16(level * env * math.Sin(2*math.Pi*n.hz*float64(i)/toneRate))
	}
	return out
}

// buzz renders a sawtooth gliding from fromHz to toHz while decaying to 5% of level.
func buzz(fromHz, toHz float64, d time.Duration, level float64) []int16 {
	count := sampleCount(d)
	if count == 0 || fromHz <= 0 || toHz <= 0 || level <= 0 {
		return nil
	}
	out := make([]int16, count)
	var phase float64
	for i := range out {
		p := float64(i) / float64(count)
		_, phase = math.Modf(phase + fromHz*math.Pow(toHz/fromHz, p)/toneRate)
		out[i] = toInt16((2*phase - 1) * level * math.Pow(0.05, p))
	}
	return out
}

func toInt16(v float64) int16 {
	return int16(math.Round(v * math.MaxInt16))
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * toneRate))
}
