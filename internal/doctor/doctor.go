// Package doctor runs runtime readiness diagnostics for config, recognizer, audio, and content.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/hifz/internal/audio"
	"github.com/rbright/hifz/internal/config"
	"github.com/rbright/hifz/internal/events"
	"github.com/rbright/hifz/internal/indicator"
	"github.com/rbright/hifz/internal/passage"
	"github.com/rbright/hifz/internal/recognizer/google"
	"github.com/rbright/hifz/internal/recognizer/script"
	"github.com/rbright/hifz/internal/version"
)

const probeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{configCheck(loaded)}

	switch cfg.Recognizer.Backend {
	case config.BackendGoogle:
		checks = append(checks, checkCredentials(ctx, cfg.Recognizer.CredentialsFile))
		checks = append(checks, checkAudioSelection(ctx, cfg))
	case config.BackendScript:
		checks = append(checks, checkScript(cfg.Recognizer.ScriptPath))
	default:
		checks = append(checks, Check{Name: "recognizer", Pass: true, Message: "disabled (backend none)"})
	}

	checks = append(checks, checkContent(ctx, cfg.Content))

	if cfg.Indicator.SoundEnable && hasCueFiles(cfg.Indicator) {
		checks = append(checks, checkAnyBinary("cue files", "pw-play", "paplay"))
	}
	if cfg.Indicator.DesktopNotify {
		checks = append(checks, checkNotifications(ctx))
	}
	if cfg.Events.Enable && len(cfg.Events.Brokers) > 0 {
		checks = append(checks, checkBrokers(ctx, cfg.Events.Brokers))
	}

	return Report{Checks: checks}
}

func configCheck(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkAnyBinary passes when the first of bins is on PATH.
func checkAnyBinary(name string, bins ...string) Check {
	for _, bin := range bins {
		if path, err := exec.LookPath(bin); err == nil {
			return Check{Name: name, Pass: true, Message: "play through " + path}
		}
	}
	return Check{Name: name, Pass: false, Message: "none of " + strings.Join(bins, ", ") + " found in PATH"}
}

func checkNotifications(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := indicator.CheckNotifications(ctx); err != nil {
		return Check{Name: "notifications", Pass: false, Message: err.Error()}
	}
	return Check{Name: "notifications", Pass: true, Message: "notification server reachable"}
}

func checkCredentials(ctx context.Context, file string) Check {
	if err := google.CheckCredentials(ctx, file); err != nil {
		return Check{Name: "google.credentials", Pass: false, Message: err.Error()}
	}
	source := "application default credentials"
	if strings.TrimSpace(file) != "" {
		source = file
	}
	return Check{Name: "google.credentials", Pass: true, Message: "found " + source}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkScript(path string) Check {
	if strings.TrimSpace(path) == "" {
		return Check{Name: "recognizer.script", Pass: true, Message: "no script_path; replay supplies one"}
	}
	if _, err := script.Load(path, 0); err != nil {
		return Check{Name: "recognizer.script", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognizer.script", Pass: true, Message: fmt.Sprintf("parsed %q", path)}
}

// checkContent probes the surah index of the content API.
func checkContent(ctx context.Context, cfg config.ContentConfig) Check {
	client := passage.NewClient(cfg.BaseURL, probeTimeout)
	client.UserAgent = version.UserAgent()
	if err := client.Ping(ctx); err != nil {
		return Check{Name: "content.api", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	return Check{Name: "content.api", Pass: true, Message: fmt.Sprintf("reachable at %s", client.BaseURL)}
}

func checkBrokers(ctx context.Context, brokers []string) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := events.Ping(ctx, brokers); err != nil {
		return Check{Name: "events.brokers", Pass: false, Message: err.Error()}
	}
	return Check{Name: "events.brokers", Pass: true, Message: strings.Join(brokers, ", ")}
}

func hasCueFiles(cfg config.IndicatorConfig) bool {
	for _, path := range []string{cfg.SoundStartFile, cfg.SoundStopFile, cfg.SoundCompleteFile, cfg.SoundErrorFile} {
		if strings.TrimSpace(path) != "" {
			return true
		}
	}
	return false
}
