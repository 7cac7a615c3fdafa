package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Parse overlays JSONC content on base and validates the result. Keys absent
// from content keep their base values; unknown keys are errors.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	cfg.Events.Brokers = slices.Clone(base.Events.Brokers)

	if strings.TrimSpace(content) != "" {
		plain, err := stripJSONC(content)
		if err != nil {
			return Config{}, nil, err
		}
		if err := decodeStrict(plain, &cfg); err != nil {
			return Config{}, nil, err
		}
	}
	cfg.tidy()

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// decodeStrict decodes exactly one JSON object into dst. Errors carry the
// line and column of the offending byte.
func decodeStrict(src string, dst *Config) error {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return located(src, err)
	}
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return fmt.Errorf("line %d: unexpected data after the config object", lineOf(src, dec.InputOffset()))
	default:
		return located(src, err)
	}
}

func located(src string, err error) error {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntax):
		line, col := position(src, syntax.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	case errors.As(err, &typ):
		line, col := position(src, typ.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}
	return err
}

// tidy trims free-form strings and folds the backend name to lower case.
func (c *Config) tidy() {
	for _, s := range []*string{
		&c.Content.BaseURL, &c.Content.Edition,
		&c.Recognizer.Backend, &c.Recognizer.LanguageCode, &c.Recognizer.Model,
		&c.Recognizer.CredentialsFile, &c.Recognizer.ScriptPath,
		&c.Audio.Input, &c.Audio.Fallback,
		&c.Indicator.SoundStartFile, &c.Indicator.SoundStopFile,
		&c.Indicator.SoundCompleteFile, &c.Indicator.SoundErrorFile, &c.Indicator.DesktopAppName,
		&c.Metrics.Listen,
		&c.Events.Topic, &c.Events.ClientID,
	} {
		*s = strings.TrimSpace(*s)
	}
	c.Recognizer.Backend = strings.ToLower(c.Recognizer.Backend)
}
