// Package config resolves, parses, validates, and defaults hifz configuration.
package config

import (
	"encoding/json"
	"errors"
	"strings"
)

// Config is the fully materialized runtime configuration used by hifz.
type Config struct {
	Content    ContentConfig    `json:"content"`
	Recognizer RecognizerConfig `json:"recognizer"`
	Audio      AudioConfig      `json:"audio"`
	Indicator  IndicatorConfig  `json:"indicator"`
	Metrics    MetricsConfig    `json:"metrics"`
	Events     EventsConfig     `json:"events"`
}

// ContentConfig locates the passage text service.
type ContentConfig struct {
	BaseURL   string `json:"base_url"`
	Edition   string `json:"edition"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Recognizer backends.
const (
	BackendGoogle = "google"
	BackendScript = "script"
	BackendNone   = "none"
)

// RecognizerConfig selects and tunes the speech recognition backend.
type RecognizerConfig struct {
	Backend         string `json:"backend"`
	LanguageCode    string `json:"language_code"`
	Model           string `json:"model"`
	CredentialsFile string `json:"credentials_file"`
	ScriptPath      string `json:"script_path"`
	ScriptDelayMS   int    `json:"script_delay_ms"`
	RestartDelayMS  int    `json:"restart_delay_ms"`
	// MaxRestarts bounds consecutive restarts that produced no segments. Zero disables the bound.
	MaxRestarts int  `json:"max_restarts"`
	GRPCDump    bool `json:"grpc_dump"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `json:"input"`
	Fallback string `json:"fallback"`
}

// IndicatorConfig controls audio cues and desktop notices.
type IndicatorConfig struct {
	SoundEnable       bool   `json:"sound_enable"`
	SoundStartFile    string `json:"sound_start_file"`
	SoundStopFile     string `json:"sound_stop_file"`
	SoundCompleteFile string `json:"sound_complete_file"`
	SoundErrorFile    string `json:"sound_error_file"`
	DesktopNotify     bool   `json:"desktop_notify"`
	DesktopAppName    string `json:"desktop_app_name"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enable bool   `json:"enable"`
	Listen string `json:"listen"`
}

// EventsConfig controls confirmed-word publishing to Kafka.
type EventsConfig struct {
	Enable   bool       `json:"enable"`
	Brokers  StringList `json:"brokers"`
	Topic    string     `json:"topic"`
	ClientID string     `json:"client_id"`
}

// StringList accepts a JSON array or a comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("expected string array or comma-separated string")
	}
	out := StringList{}
	for part := range strings.SplitSeq(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}
