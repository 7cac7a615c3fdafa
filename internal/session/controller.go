// Package session tracks recitation progress and drives the recognition lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/hifz/internal/align"
	"github.com/rbright/hifz/internal/events"
	"github.com/rbright/hifz/internal/fsm"
	"github.com/rbright/hifz/internal/indicator"
	"github.com/rbright/hifz/internal/ipc"
	"github.com/rbright/hifz/internal/recognizer"
)

var (
	// ErrNoReference is returned by Run when the passage has no matchable words.
	ErrNoReference = errors.New("passage has no words to match")
	// ErrAlreadyComplete is returned by Run when every word is already confirmed.
	ErrAlreadyComplete = errors.New("passage already complete; reset to recite again")
	// ErrStalled is reported when the recognizer keeps ending without output.
	ErrStalled = errors.New("recognizer keeps stopping without output")
)

// Session outcomes reported in Result and metrics.
const (
	OutcomeComplete         = "complete"
	OutcomeStopped          = "stopped"
	OutcomePaused           = "paused"
	OutcomeCancelled        = "cancelled"
	OutcomeExhausted        = "exhausted"
	OutcomeUnsupported      = "unsupported"
	OutcomePermissionDenied = "permission_denied"
	OutcomeFailed           = "failed"
)

type action int

func (a action) end() streamEnd {
	if a == actionPause {
		return endPaused
	}
	return endStopped
}

const (
	actionStop action = iota + 1
	actionPause
)

// streamEnd says why the controller stopped reading a recognition stream.
type streamEnd int

const (
	endNone streamEnd = iota
	endComplete
	endStopped
	endPaused
	endCancelled
	endClosed
)

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State      fsm.State
	Outcome    string
	Err        error
	Confirmed  int
	Total      int
	Progress   float64
	Segments   int
	Restarts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	CueStart(context.Context)
	CueStop(context.Context)
	CueComplete(context.Context)
	Notice(context.Context, indicator.NoticeKind, string)
}

// Observer receives a fresh snapshot whenever confirmed progress changes.
type Observer interface {
	Observe(Snapshot)
}

// Publisher forwards confirmed words to downstream consumers.
type Publisher interface {
	PublishConfirmed(context.Context, events.Confirmed) error
	PublishComplete(context.Context, events.Complete) error
}

// Metrics is the session-facing subset of the metrics registry.
type Metrics interface {
	ObserveSegment(final bool)
	ObserveRules(rules []align.Rule, skipped int, deferred bool)
	ObserveRestart()
	ObserveSession(outcome string)
	SetProgress(progress float64)
}

type noopIndicator struct{}

func (noopIndicator) CueStart(context.Context)                             {}
func (noopIndicator) CueStop(context.Context)                              {}
func (noopIndicator) CueComplete(context.Context)                          {}
func (noopIndicator) Notice(context.Context, indicator.NoticeKind, string) {}

type noopObserver struct{}

func (noopObserver) Observe(Snapshot) {}

type noopPublisher struct{}

func (noopPublisher) PublishConfirmed(context.Context, events.Confirmed) error { return nil }
func (noopPublisher) PublishComplete(context.Context, events.Complete) error   { return nil }

type noopMetrics struct{}

func (noopMetrics) ObserveSegment(bool)                  {}
func (noopMetrics) ObserveRules([]align.Rule, int, bool) {}
func (noopMetrics) ObserveRestart()                      {}
func (noopMetrics) ObserveSession(string)                {}
func (noopMetrics) SetProgress(float64)                  {}

// Options wires a Controller. Only Recognizer and Tracker are required.
type Options struct {
	Logger     *slog.Logger
	Recognizer recognizer.Recognizer
	Tracker    *Tracker
	Indicator  Indicator
	Observer   Observer
	Publisher  Publisher
	Metrics    Metrics

	SessionID    string
	Surah        int
	RestartDelay time.Duration
	// MaxRestarts bounds consecutive restarts that delivered no segment. Zero means unlimited.
	MaxRestarts int
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	logger     *slog.Logger
	recognizer recognizer.Recognizer
	tracker    *Tracker
	indicator  Indicator
	observer   Observer
	publisher  Publisher
	metrics    Metrics

	sessionID    string
	surah        int
	restartDelay time.Duration
	maxRestarts  int

	mu    sync.RWMutex
	state fsm.State

	actions chan action
	resumes chan struct{}
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Recognizer == nil {
		opts.Recognizer = recognizer.Unavailable{Reason: "no recognizer configured"}
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker(nil)
	}
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	return &Controller{
		logger:       opts.Logger,
		recognizer:   opts.Recognizer,
		tracker:      opts.Tracker,
		indicator:    opts.Indicator,
		observer:     opts.Observer,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		sessionID:    opts.SessionID,
		surah:        opts.Surah,
		restartDelay: opts.RestartDelay,
		maxRestarts:  opts.MaxRestarts,
		state:        fsm.StateIdle,
		actions:      make(chan action, 1),
		resumes:      make(chan struct{}, 1),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Tracker returns the progress tracker the controller feeds.
func (c *Controller) Tracker() *Tracker {
	return c.tracker
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run listens until the passage completes, the user stops, ctx ends, or the
// recognizer fails. Progress survives a stop, so a later Run resumes at the cursor.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	if c.tracker.Len() == 0 {
		return c.finish(result, OutcomeFailed, ErrNoReference)
	}
	if c.tracker.Complete() {
		return c.finish(result, OutcomeComplete, ErrAlreadyComplete)
	}
	if err := c.transition(fsm.EventStart); err != nil {
		return c.finish(result, OutcomeFailed, err)
	}
	c.drainActions()

	c.indicator.CueStart(ctx)
	c.observer.Observe(c.tracker.Snapshot())

	idleRestarts := 0
	for {
		stream, err := c.recognizer.Start(ctx)
		if err != nil {
			return c.startFailed(ctx, result, err)
		}

		end, delivered := c.consume(ctx, stream, &result)
		c.tracker.EndRevision()

		switch end {
		case endComplete:
			return c.complete(ctx, result)
		case endStopped:
			return c.stop(result, OutcomeStopped, nil)
		case endPaused:
			return c.stop(result, OutcomePaused, nil)
		case endCancelled:
			return c.stop(result, OutcomeCancelled, nil)
		}

		streamErr := stream.Err()
		switch {
		case errors.Is(streamErr, recognizer.ErrPermissionDenied):
			c.indicator.Notice(context.Background(), indicator.NoticePermissionDenied, streamErr.Error())
			c.toErrorAndReset()
			return c.finish(result, OutcomePermissionDenied, streamErr)
		case errors.Is(streamErr, recognizer.ErrEndOfInput):
			return c.stop(result, OutcomeExhausted, nil)
		}

		if delivered > 0 {
			idleRestarts = 0
		} else {
			idleRestarts++
		}
		if c.maxRestarts > 0 && idleRestarts > c.maxRestarts {
			err := fmt.Errorf("%w: %d consecutive restarts", ErrStalled, c.maxRestarts)
			if streamErr != nil {
				err = fmt.Errorf("%w: %d consecutive restarts: %v", ErrStalled, c.maxRestarts, streamErr)
			}
			c.indicator.Notice(context.Background(), indicator.NoticeRecognizerFailed, err.Error())
			c.toErrorAndReset()
			return c.finish(result, OutcomeFailed, err)
		}

		result.Restarts++
		c.metrics.ObserveRestart()
		c.logger.Warn("recognition stream ended; restarting",
			"error", streamErr,
			"delivered", delivered,
			"restarts", result.Restarts,
			"delay_ms", c.restartDelay.Milliseconds(),
		)

		switch c.wait(ctx, c.restartDelay) {
		case endStopped:
			return c.stop(result, OutcomeStopped, nil)
		case endPaused:
			return c.stop(result, OutcomePaused, nil)
		case endCancelled:
			return c.stop(result, OutcomeCancelled, nil)
		}
	}
}

// consume applies segments one at a time until the stream closes or the
// session ends. It returns the number of segments delivered.
func (c *Controller) consume(ctx context.Context, stream recognizer.Stream, result *Result) (streamEnd, int) {
	delivered := 0
	for {
		select {
		case <-ctx.Done():
			_ = stream.Stop()
			return endCancelled, delivered
		case a := <-c.actions:
			_ = stream.Stop()
			return a.end(), delivered
		case seg, ok := <-stream.Segments():
			if !ok {
				return endClosed, delivered
			}
			delivered++
			result.Segments++
			if c.apply(ctx, seg) {
				_ = stream.Stop()
				return endComplete, delivered
			}
		}
	}
}

// apply feeds one segment and fans the update out. It reports completion.
func (c *Controller) apply(ctx context.Context, seg align.Segment) bool {
	update := c.tracker.Apply(seg)

	c.metrics.ObserveSegment(seg.Final)
	c.metrics.ObserveRules(update.Rules, update.Skipped, update.Deferred)
	c.metrics.SetProgress(update.Progress)

	c.logger.Debug("segment applied",
		"result_index", seg.ResultIndex,
		"final", seg.Final,
		"confirmed", len(update.Confirmed),
		"skipped", update.Skipped,
		"deferred", update.Deferred,
		"progress", update.Progress,
	)

	if len(update.Confirmed) == 0 {
		return update.Completed
	}

	total := max(1, c.tracker.Len())
	now := time.Now().UTC()
	for i, tok := range update.Confirmed {
		position := update.Position + i
		event := events.Confirmed{
			SessionID: c.sessionID,
			Surah:     c.surah,
			Verse:     tok.Verse,
			Position:  position,
			Display:   tok.Display,
			Rule:      update.Rules[i].String(),
			Progress:  float64(position+1) / float64(total),
			At:        now,
		}
		if err := c.publisher.PublishConfirmed(ctx, event); err != nil {
			c.logger.Warn("publish confirmed event failed", "error", err, "position", position)
		}
	}

	c.observer.Observe(c.tracker.Snapshot())
	return update.Completed
}

func (c *Controller) complete(ctx context.Context, result Result) Result {
	c.indicator.CueComplete(context.Background())

	err := c.publisher.PublishComplete(ctx, events.Complete{
		SessionID: c.sessionID,
		Surah:     c.surah,
		Tokens:    c.tracker.Len(),
		Restarts:  result.Restarts,
		At:        time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("publish complete event failed", "error", err)
	}

	if err := c.transition(fsm.EventComplete); err != nil {
		c.toErrorAndReset()
		return c.finish(result, OutcomeFailed, err)
	}
	return c.finish(result, OutcomeComplete, nil)
}

// stop returns to idle with progress intact.
func (c *Controller) stop(result Result, outcome string, err error) Result {
	c.indicator.CueStop(context.Background())
	if terr := c.transition(fsm.EventStop); terr != nil {
		c.toErrorAndReset()
		return c.finish(result, OutcomeFailed, terr)
	}
	return c.finish(result, outcome, err)
}

func (c *Controller) startFailed(ctx context.Context, result Result, err error) Result {
	switch {
	case errors.Is(err, recognizer.ErrEndOfInput):
		return c.stop(result, OutcomeExhausted, nil)
	case errors.Is(err, recognizer.ErrUnsupported):
		c.indicator.Notice(ctx, indicator.NoticeUnsupported, err.Error())
		c.toErrorAndReset()
		return c.finish(result, OutcomeUnsupported, err)
	case errors.Is(err, recognizer.ErrPermissionDenied):
		c.indicator.Notice(ctx, indicator.NoticePermissionDenied, err.Error())
		c.toErrorAndReset()
		return c.finish(result, OutcomePermissionDenied, err)
	case ctx.Err() != nil:
		return c.stop(result, OutcomeCancelled, nil)
	default:
		c.indicator.Notice(ctx, indicator.NoticeRecognizerFailed, err.Error())
		c.toErrorAndReset()
		return c.finish(result, OutcomeFailed, fmt.Errorf("start recognizer: %w", err))
	}
}

// wait sleeps between restarts while still honoring stop and cancel.
func (c *Controller) wait(ctx context.Context, d time.Duration) streamEnd {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return endCancelled
		case a := <-c.actions:
			return a.end()
		default:
			return endNone
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return endCancelled
	case a := <-c.actions:
		return a.end()
	case <-timer.C:
		return endNone
	}
}

func (c *Controller) finish(result Result, outcome string, err error) Result {
	snapshot := c.tracker.Snapshot()
	result.State = c.State()
	result.Outcome = outcome
	result.Err = err
	result.Confirmed = snapshot.Confirmed
	result.Total = snapshot.Total
	result.Progress = snapshot.Progress
	result.FinishedAt = time.Now()

	c.metrics.ObserveSession(outcome)
	c.metrics.SetProgress(snapshot.Progress)
	c.logger.Info("session finished",
		"outcome", outcome,
		"state", string(result.State),
		"confirmed", result.Confirmed,
		"total", result.Total,
		"segments", result.Segments,
		"restarts", result.Restarts,
		"error", err,
	)
	return result
}

func (c *Controller) drainActions() {
	for {
		select {
		case <-c.actions:
		default:
			return
		}
	}
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		snapshot := c.tracker.Snapshot()
		return ipc.Response{
			OK:       true,
			State:    string(c.State()),
			Message:  fmt.Sprintf("%d/%d words", snapshot.Confirmed, snapshot.Total),
			Progress: snapshot.Progress,
			Verse:    snapshot.Verse,
		}
	case ipc.CommandToggle:
		if c.State() == fsm.StateIdle {
			return c.requestResume()
		}
		return c.requestStop("toggle", actionPause)
	case ipc.CommandStop:
		return c.requestStop("stop", actionStop)
	case ipc.CommandReset:
		return c.reset()
	default:
		return ipc.Failed(string(c.State()), "unknown command: %s", req.Command)
	}
}

// requestStop enqueues a stop or pause action when state permits it.
func (c *Controller) requestStop(source string, a action) ipc.Response {
	state := c.State()
	if !fsm.Accepts(state, fsm.EventStop) {
		return ipc.Failed(string(state), "cannot %s from state %s", source, state)
	}

	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: string(state), Message: source + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// requestResume wakes an owner blocked in WaitResume.
func (c *Controller) requestResume() ipc.Response {
	select {
	case c.resumes <- struct{}{}:
		return ipc.Response{OK: true, State: string(fsm.StateIdle), Message: "resume requested"}
	default:
		return ipc.Response{OK: true, State: string(fsm.StateIdle), Message: "resume already requested"}
	}
}

// WaitResume blocks until a toggle arrives while idle. It reports false when ctx ends first.
func (c *Controller) WaitResume(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.resumes:
		return true
	}
}

// reset drops progress against the same passage.
func (c *Controller) reset() ipc.Response {
	state := c.State()
	if !fsm.Accepts(state, fsm.EventReset) {
		return ipc.Failed(string(state), "cannot reset while %s; pause first", state)
	}
	if err := c.transition(fsm.EventReset); err != nil {
		return ipc.Failed(string(c.State()), "%v", err)
	}
	c.tracker.Restart()
	c.metrics.SetProgress(0)
	c.observer.Observe(c.tracker.Snapshot())
	return ipc.Response{OK: true, State: string(c.State()), Message: "progress reset"}
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}
