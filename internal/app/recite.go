package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rbright/hifz/internal/align"
	"github.com/rbright/hifz/internal/cli"
	"github.com/rbright/hifz/internal/config"
	"github.com/rbright/hifz/internal/events"
	"github.com/rbright/hifz/internal/indicator"
	"github.com/rbright/hifz/internal/ipc"
	"github.com/rbright/hifz/internal/logging"
	"github.com/rbright/hifz/internal/metrics"
	"github.com/rbright/hifz/internal/passage"
	"github.com/rbright/hifz/internal/recognizer"
	"github.com/rbright/hifz/internal/recognizer/google"
	"github.com/rbright/hifz/internal/recognizer/script"
	"github.com/rbright/hifz/internal/render"
	"github.com/rbright/hifz/internal/session"
	"github.com/rbright/hifz/internal/version"
)

// commandRecite owns the socket and runs one recitation until it ends.
// A toggle pauses the owner; a second toggle resumes from the cursor.
func (r Runner) commandRecite(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		r.errorf("%v", err)
		return exitFail
	}
	if _, handled, _ := tryForward(ctx, socketPath, ipc.CommandStatus); handled {
		r.errorf("a hifz session is already running; use `hifz stop` first")
		return exitFail
	}

	selected, err := loadPassage(ctx, parsed, cfg.Content)
	if err != nil {
		r.errorf("%v", err)
		logger.Error("load passage failed", "error", err.Error())
		return exitFail
	}
	ref := align.Reference(selected.Verses)
	if len(ref) == 0 {
		r.errorf("%v", session.ErrNoReference)
		return exitFail
	}

	rec, closeRec, err := recognizerFor(ctx, parsed, cfg, logger)
	if err != nil {
		r.errorf("%v", err)
		logger.Error("recognizer setup failed", "error", err.Error())
		return exitFail
	}
	defer closeRec()

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			r.errorf("a hifz session is already running; use `hifz stop` first")
			return exitFail
		}
		r.errorf("%v", err)
		return exitFail
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	publisher := events.New(events.Config{
		Enabled:  cfg.Events.Enable,
		Brokers:  cfg.Events.Brokers,
		Topic:    cfg.Events.Topic,
		ClientID: cfg.Events.ClientID,
	}, logger, m)
	defer func() { _ = publisher.Close() }()

	cues := indicator.New(cfg.Indicator, logger)
	cues.SetOutput(r.Stderr)
	defer cues.Wait()

	sessionID := uuid.NewString()
	ctrl := session.NewController(session.Options{
		Logger:       logger.With("session_id", sessionID, "surah", selected.Surah),
		Recognizer:   rec,
		Tracker:      session.NewTracker(ref),
		Indicator:    cues,
		Observer:     render.New(r.Stdout, passageTitle(selected), isTerminal(r.Stdout)),
		Publisher:    publisher,
		Metrics:      m,
		SessionID:    sessionID,
		Surah:        selected.Surah,
		RestartDelay: time.Duration(cfg.Recognizer.RestartDelayMS) * time.Millisecond,
		MaxRestarts:  cfg.Recognizer.MaxRestarts,
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	var g errgroup.Group
	g.Go(func() error {
		return ipc.Serve(serverCtx, listener, ctrl)
	})
	if cfg.Metrics.Enable {
		g.Go(func() error {
			return metrics.NewServer(cfg.Metrics.Listen, registry, logger).Serve(serverCtx)
		})
	}

	result := r.runOwner(ctx, ctrl, logger)
	serverCancel()
	if serverErr := g.Wait(); serverErr != nil {
		r.errorf("server failed: %v", serverErr)
		return exitFail
	}

	fmt.Fprintln(r.Stdout, summaryLine(result))
	switch result.Outcome {
	case session.OutcomeComplete, session.OutcomeStopped, session.OutcomeCancelled, session.OutcomeExhausted:
		return exitOK
	}
	if result.Err != nil {
		r.errorf("%v", result.Err)
	}
	return exitFail
}

// runOwner repeats Run across pauses until the session ends for good.
func (r Runner) runOwner(ctx context.Context, ctrl *session.Controller, logger *slog.Logger) session.Result {
	for {
		result := ctrl.Run(ctx)
		logSessionResult(logger, result)
		if result.Outcome != session.OutcomePaused {
			return result
		}
		fmt.Fprintln(r.Stdout, summaryLine(result)+"; run `hifz toggle` to resume")
		if !ctrl.WaitResume(ctx) {
			result.Outcome = session.OutcomeCancelled
			return result
		}
	}
}

func loadPassage(ctx context.Context, parsed cli.Parsed, cfg config.ContentConfig) (passage.Passage, error) {
	sel := parsed.Selection

	var full passage.Passage
	if path := strings.TrimSpace(parsed.PassagePath); path != "" {
		p, err := passage.LoadFile(path)
		if err != nil {
			return passage.Passage{}, err
		}
		if p.Surah != 0 && p.Surah != sel.Surah {
			return passage.Passage{}, fmt.Errorf("passage file %q holds surah %d, not %d", path, p.Surah, sel.Surah)
		}
		full = p
	} else {
		client := passage.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutMS)*time.Millisecond)
		client.UserAgent = version.UserAgent()
		p, err := client.Surah(ctx, sel.Surah, cfg.Edition)
		if err != nil {
			return passage.Passage{}, err
		}
		full = p
	}

	return passage.Range(full, sel.From, sel.To)
}

// recognizerFor returns the replay script for `replay`, else the configured backend.
func recognizerFor(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) (recognizer.Recognizer, func(), error) {
	delay := time.Duration(cfg.Recognizer.ScriptDelayMS) * time.Millisecond
	if parsed.Command == cli.CommandReplay {
		rec, err := script.Load(parsed.ScriptPath, delay)
		if err != nil {
			return nil, nil, err
		}
		return rec, func() {}, nil
	}
	return newRecognizer(ctx, cfg, logger)
}

// newRecognizer builds the configured backend. Backends that cannot run
// become recognizer.Unavailable so the session reports them as unsupported.
func newRecognizer(ctx context.Context, cfg config.Config, logger *slog.Logger) (recognizer.Recognizer, func(), error) {
	rc := cfg.Recognizer
	noop := func() {}

	switch rc.Backend {
	case config.BackendScript:
		if strings.TrimSpace(rc.ScriptPath) == "" {
			return recognizer.Unavailable{Reason: "recognizer.script_path is empty"}, noop, nil
		}
		rec, err := script.Load(rc.ScriptPath, time.Duration(rc.ScriptDelayMS)*time.Millisecond)
		if err != nil {
			return nil, nil, err
		}
		return rec, noop, nil
	case config.BackendGoogle:
		if err := google.CheckCredentials(ctx, rc.CredentialsFile); err != nil {
			logger.Warn("speech credentials unavailable", "error", err.Error())
			return recognizer.Unavailable{Reason: err.Error()}, noop, nil
		}
		gcfg := google.Config{
			LanguageCode:    rc.LanguageCode,
			Model:           rc.Model,
			CredentialsFile: rc.CredentialsFile,
			AudioInput:      cfg.Audio.Input,
			AudioFallback:   cfg.Audio.Fallback,
		}
		if rc.GRPCDump {
			if dir, err := logging.StateDir(); err == nil {
				gcfg.DumpDir = filepath.Join(dir, "dumps")
			}
		}
		rec, err := google.New(ctx, gcfg, logger)
		if err != nil {
			return recognizer.Unavailable{Reason: err.Error()}, noop, nil
		}
		return rec, func() { _ = rec.Close() }, nil
	default:
		return recognizer.Unavailable{Reason: fmt.Sprintf("recognizer backend %q", rc.Backend)}, noop, nil
	}
}

func passageTitle(p passage.Passage) string {
	if len(p.Verses) == 0 {
		return ""
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = fmt.Sprintf("surah %d", p.Surah)
	}
	first, last := p.Verses[0].Number, p.Verses[len(p.Verses)-1].Number
	return fmt.Sprintf("%s %s-%s", name, render.ArabicDigits(first), render.ArabicDigits(last))
}

func summaryLine(result session.Result) string {
	return fmt.Sprintf("%s: %d/%d words (%d%%)",
		result.Outcome, result.Confirmed, result.Total, render.Percent(result.Progress))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"outcome", result.Outcome,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"confirmed", result.Confirmed,
		"total", result.Total,
		"segments", result.Segments,
		"restarts", result.Restarts,
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session ended", fields...)
}
