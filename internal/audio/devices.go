// Package audio finds PulseAudio microphones and streams their PCM to a recognizer.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// ErrMuted marks a selection that failed only because the chosen source is muted.
var ErrMuted = errors.New("audio input is muted")

// Device is one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
	// Monitor sources loop back a sink and never carry the reciter's voice.
	Monitor bool
}

func (d Device) String() string {
	id, desc := strings.TrimSpace(d.ID), strings.TrimSpace(d.Description)
	switch {
	case desc == "":
		return id
	case id == "":
		return desc
	}
	return desc + " (" + id + ")"
}

// Selection is the source to record from. Warning is set when the configured
// input could not be used and the fallback was taken instead.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("hifz"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns every Pulse source, monitors included.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info != nil {
			devices = append(devices, deviceFromInfo(info, def.ID()))
		}
	}
	return devices, nil
}

func deviceFromInfo(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       sourceState(info.State),
		Available:   portAvailable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
		Monitor:     strings.HasSuffix(info.SourceName, ".monitor"),
	}
}

// SelectDevice resolves audio.input, then audio.fallback, against live sources.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return choose(devices, input, fallback)
}

func choose(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := lookup(devices, input)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input: %w", err)
	}
	problem := unusable(primary)
	if problem == "" {
		return Selection{Device: primary}, nil
	}

	alt, err := lookup(devices, fallback)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %q is %s; audio.fallback: %w", primary.ID, problem, err)
	}
	switch unusable(alt) {
	case "":
	case "muted":
		return Selection{}, fmt.Errorf("audio fallback %q: %w", alt.ID, ErrMuted)
	default:
		return Selection{}, fmt.Errorf("audio fallback %q is %s", alt.ID, unusable(alt))
	}

	return Selection{
		Device:   alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; recording from %q", primary.ID, problem, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

// lookup finds the device a config term names. "default" or empty picks the
// Pulse default. Other terms match id or description, case-insensitively;
// monitors only match by exact id.
func lookup(devices []Device, term string) (Device, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	for _, d := range devices {
		if term == "" || term == "default" {
			if d.Default {
				return d, nil
			}
			continue
		}
		if d.Monitor {
			if strings.ToLower(d.ID) == term {
				return d, nil
			}
			continue
		}
		if matches(d, term) {
			return d, nil
		}
	}
	if term == "" || term == "default" {
		return Device{}, errors.New("no default source")
	}
	return Device{}, fmt.Errorf("%q matches no device", term)
}

// unusable names why a device cannot record a recitation, or returns "".
func unusable(d Device) string {
	switch {
	case !d.Available:
		return "not available"
	case d.Muted:
		return "muted"
	case d.Monitor && d.Default:
		return "a monitor source"
	}
	return ""
}

func matches(d Device, term string) bool {
	return term != "" && (strings.Contains(strings.ToLower(d.ID), term) ||
		strings.Contains(strings.ToLower(d.Description), term))
}

var sourceStates = [...]string{"running", "idle", "suspended"}

func sourceState(state uint32) string {
	if int(state) < len(sourceStates) {
		return sourceStates[state]
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// portAvailable is false only when the active port reports unplugged.
func portAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			// Pulse encodes unknown=0, no=1, yes=2.
			return port.Available != 1
		}
	}
	return true
}
