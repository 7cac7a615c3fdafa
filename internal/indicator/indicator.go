// Package indicator plays audio cues and surfaces blocking notices.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rbright/hifz/internal/config"
)

// NoticeKind names a condition that needs the reciter's attention.
type NoticeKind int

const (
	NoticeUnsupported NoticeKind = iota + 1
	NoticePermissionDenied
	NoticeRecognizerFailed
)

// Indicator emits cues through PulseAudio and notices to stderr and the desktop.
type Indicator struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	out      io.Writer

	// play and notify are swapped in tests.
	play   func(context.Context, cueKind) error
	notify func(ctx context.Context, appName, summary, body string) error

	soundMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates an indicator from config. Notices are written to stderr.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Indicator {
	ind := &Indicator{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFromEnv(),
		out:      os.Stderr,
		notify:   desktopNotify,
	}
	ind.play = func(ctx context.Context, kind cueKind) error {
		return emitCue(ctx, kind, ind.cfg)
	}
	return ind
}

// SetOutput redirects notices. A nil writer silences them.
func (i *Indicator) SetOutput(w io.Writer) { i.out = w }

// CueStart signals that listening began.
func (i *Indicator) CueStart(ctx context.Context) { i.playCue(ctx, cueStart) }

// CueStop signals that listening ended before completion.
func (i *Indicator) CueStop(ctx context.Context) { i.playCue(ctx, cueStop) }

// CueComplete signals that the passage was recited to the end.
func (i *Indicator) CueComplete(ctx context.Context) { i.playCue(ctx, cueComplete) }

// Notice reports a blocking condition. It always writes to the notice writer,
// plays the error sweep, and raises a desktop notification when enabled.
func (i *Indicator) Notice(ctx context.Context, kind NoticeKind, detail string) {
	text := i.messages.notice(kind)
	if detail = strings.TrimSpace(detail); detail != "" {
		text = fmt.Sprintf("%s (%s)", text, detail)
	}
	if i.out != nil {
		_, _ = fmt.Fprintln(i.out, text)
	}

	i.playCue(ctx, cueError)

	if !i.cfg.DesktopNotify || i.notify == nil {
		return
	}
	appName := strings.TrimSpace(i.cfg.DesktopAppName)
	if appName == "" {
		appName = "hifz"
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 400*time.Millisecond)
	defer cancel()
	if err := i.notify(notifyCtx, appName, i.messages.title, text); err != nil {
		i.log("desktop notification failed", err)
	}
}

// Wait blocks until queued cues have played.
func (i *Indicator) Wait() {
	i.wg.Wait()
}

// playCue serializes playback and emits audio asynchronously.
func (i *Indicator) playCue(ctx context.Context, kind cueKind) {
	if !i.cfg.SoundEnable || i.play == nil {
		return
	}
	cueCtx := context.WithoutCancel(ctx)
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.soundMu.Lock()
		defer i.soundMu.Unlock()
		playCtx, cancel := context.WithTimeout(cueCtx, 4*time.Second)
		defer cancel()
		if err := i.play(playCtx, kind); err != nil {
			i.log("audio cue failed", err)
		}
	}()
}

func (i *Indicator) log(message string, err error) {
	if i.logger == nil || err == nil {
		return
	}
	i.logger.Debug(message, "error", err.Error())
}
