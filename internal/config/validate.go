package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	baseURL := strings.TrimSpace(cfg.Content.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("content.base_url must not be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("content.base_url must be an absolute http(s) URL")
	}
	if strings.TrimSpace(cfg.Content.Edition) == "" {
		return nil, fmt.Errorf("content.edition must not be empty")
	}
	if cfg.Content.TimeoutMS <= 0 {
		return nil, fmt.Errorf("content.timeout_ms must be > 0")
	}

	switch cfg.Recognizer.Backend {
	case BackendGoogle, BackendNone:
	case BackendScript:
		if strings.TrimSpace(cfg.Recognizer.ScriptPath) == "" {
			warnings = append(warnings, Warning{Message: "recognizer.backend=script without recognizer.script_path; only replay can supply a script"})
		}
	default:
		return nil, fmt.Errorf("recognizer.backend must be one of: google, script, none")
	}
	if strings.TrimSpace(cfg.Recognizer.LanguageCode) == "" {
		return nil, fmt.Errorf("recognizer.language_code must not be empty")
	}
	if !strings.HasPrefix(strings.ToLower(cfg.Recognizer.LanguageCode), "ar") {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("recognizer.language_code %q is not an Arabic locale", cfg.Recognizer.LanguageCode)})
	}
	if cfg.Recognizer.ScriptDelayMS < 0 {
		return nil, fmt.Errorf("recognizer.script_delay_ms must be >= 0")
	}
	if cfg.Recognizer.RestartDelayMS < 0 {
		return nil, fmt.Errorf("recognizer.restart_delay_ms must be >= 0")
	}
	if cfg.Recognizer.MaxRestarts < 0 {
		return nil, fmt.Errorf("recognizer.max_restarts must be >= 0")
	}

	if cfg.Indicator.DesktopNotify && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.desktop_notify=true")
	}

	if cfg.Metrics.Enable {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return nil, fmt.Errorf("metrics.listen must be host:port: %w", err)
		}
	}

	if cfg.Events.Enable {
		if strings.TrimSpace(cfg.Events.Topic) == "" {
			return nil, fmt.Errorf("events.topic must not be empty when events.enable=true")
		}
		if len(cfg.Events.Brokers) == 0 {
			warnings = append(warnings, Warning{Message: "events.enable is set without events.brokers; events will only be logged"})
		}
		for _, broker := range cfg.Events.Brokers {
			if _, _, err := net.SplitHostPort(broker); err != nil {
				return nil, fmt.Errorf("events.brokers entry %q must be host:port", broker)
			}
		}
	}

	return warnings, nil
}
