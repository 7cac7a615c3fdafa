// Package app dispatches CLI commands to the recitation owner or its IPC socket.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rbright/hifz/internal/audio"
	"github.com/rbright/hifz/internal/cli"
	"github.com/rbright/hifz/internal/config"
	"github.com/rbright/hifz/internal/doctor"
	"github.com/rbright/hifz/internal/ipc"
	"github.com/rbright/hifz/internal/logging"
	"github.com/rbright/hifz/internal/render"
	"github.com/rbright/hifz/internal/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// forwardTimeout bounds one round trip to the owner.
const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Logger replaces the file logger when set.
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return Runner{Stdout: stdout, Stderr: stderr}.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	switch {
	case err != nil:
		r.errorf("%v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("hifz"))
		return exitUsage
	case parsed.ShowHelp:
		fmt.Fprint(r.Stdout, cli.HelpText("hifz"))
		return exitOK
	case parsed.Command == cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	logs, err := logging.New(logging.Options{Debug: parsed.Debug})
	if err != nil {
		r.errorf("setup logging: %v", err)
		return exitFail
	}
	defer func() { _ = logs.Close() }()
	logger := r.Logger
	if logger == nil {
		logger = logs.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		r.errorf("%v", err)
		return exitFail
	}
	r.warn(logger, loaded.Warnings)

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"log", logs.Path,
		"backend", loaded.Config.Recognizer.Backend,
	)
	return r.dispatch(ctx, parsed, loaded, logger)
}

func (r Runner) dispatch(ctx context.Context, parsed cli.Parsed, loaded config.Loaded, logger *slog.Logger) int {
	switch parsed.Command {
	case cli.CommandRecite, cli.CommandReplay:
		return r.commandRecite(ctx, parsed, loaded.Config, logger)
	case cli.CommandStatus:
		return r.forward(ctx, ipc.CommandStatus, true)
	case cli.CommandToggle:
		return r.forward(ctx, ipc.CommandToggle, false)
	case cli.CommandStop:
		return r.forward(ctx, ipc.CommandStop, false)
	case cli.CommandReset:
		return r.forward(ctx, ipc.CommandReset, false)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if !report.OK() {
			return exitFail
		}
		return exitOK
	}
	r.errorf("unsupported command %q", parsed.Command)
	return exitUsage
}

// forward relays command to the owner. With idleOK a missing owner prints
// "idle" instead of failing.
func (r Runner) forward(ctx context.Context, command string, idleOK bool) int {
	socketPath, err := ipc.RuntimeSocketPath()
	resp, handled := ipc.Response{}, false
	if err == nil {
		resp, handled, err = tryForward(ctx, socketPath, command)
	}

	switch {
	case !handled && idleOK:
		fmt.Fprintln(r.Stdout, "idle")
		return exitOK
	case !handled && err == nil:
		r.errorf("no active hifz session")
		return exitFail
	case err != nil:
		r.errorf("%v", err)
		return exitFail
	}

	if command == ipc.CommandStatus {
		fmt.Fprintln(r.Stdout, statusLine(resp))
	} else if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return exitOK
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	return ipc.Forward(ctx, socketPath, command, forwardTimeout)
}

// statusLine renders a status response as "state [n%] [verse v] [(detail)]".
func statusLine(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	parts := []string{state}
	if resp.Progress > 0 {
		parts = append(parts, fmt.Sprintf("%d%%", render.Percent(resp.Progress)))
	}
	if resp.Verse > 0 {
		parts = append(parts, fmt.Sprintf("verse %d", resp.Verse))
	}
	if resp.Message != "" {
		parts = append(parts, "("+resp.Message+")")
	}
	return strings.Join(parts, " ")
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		r.errorf("%v", err)
		return exitFail
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return exitFail
	}
	writeDevices(r.Stdout, devices)
	return exitOK
}

// writeDevices prints one row per source; the default is starred and
// monitors are marked since they cannot hear a reciter.
func writeDevices(w io.Writer, devices []audio.Device) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDESCRIPTION\tSTATE\tAVAILABLE\tMUTED\tKIND")
	for _, d := range devices {
		mark, kind := "", "mic"
		if d.Default {
			mark = "*"
		}
		if d.Monitor {
			kind = "monitor"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted), kind)
	}
	_ = tw.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) warn(logger *slog.Logger, warnings []config.Warning) {
	for _, w := range warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
}

// errorf prints "error: ..." to stderr, adding the trailing newline when missing.
func (r Runner) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(r.Stderr, "error: "+msg)
}
