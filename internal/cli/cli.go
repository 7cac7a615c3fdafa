// Package cli parses hifz command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandRecite  Command = "recite"
	CommandReplay  Command = "replay"
	CommandToggle  Command = "toggle"
	CommandStop    Command = "stop"
	CommandReset   Command = "reset"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// positional lists the minimum and maximum operand counts per command.
var positional = map[Command][2]int{
	CommandRecite:  {1, 3},
	CommandReplay:  {2, 4},
	CommandToggle:  {0, 0},
	CommandStop:    {0, 0},
	CommandReset:   {0, 0},
	CommandStatus:  {0, 0},
	CommandDevices: {0, 0},
	CommandDoctor:  {0, 0},
	CommandVersion: {0, 0},
	CommandHelp:    {0, 0},
}

// Selection names a verse range. To is zero when the range runs to the end of the surah.
type Selection struct {
	Surah int
	From  int
	To    int
}

type Parsed struct {
	Command     Command
	ConfigPath  string
	PassagePath string
	ScriptPath  string
	Selection   Selection
	Debug       bool
	ShowHelp    bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--passage":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--passage requires a path")
			}
			parsed.PassagePath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			bounds, ok := positional[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			operands := args[i+1:]
			if len(operands) < bounds[0] {
				return Parsed{}, fmt.Errorf("%s: missing arguments; see %q", arg, "hifz help")
			}
			if len(operands) > bounds[1] {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parsed.applyOperands(operands); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func (p *Parsed) applyOperands(operands []string) error {
	switch p.Command {
	case CommandReplay:
		p.ScriptPath = operands[0]
		operands = operands[1:]
	case CommandRecite:
	default:
		return nil
	}

	selection, err := parseSelection(operands)
	if err != nil {
		return err
	}
	p.Selection = selection
	return nil
}

func parseSelection(operands []string) (Selection, error) {
	values := make([]int, len(operands))
	for i, raw := range operands {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return Selection{}, fmt.Errorf("invalid number %q: expected a positive integer", raw)
		}
		values[i] = n
	}

	selection := Selection{Surah: values[0], From: 1}
	if selection.Surah > 114 {
		return Selection{}, fmt.Errorf("surah %d out of range 1..114", selection.Surah)
	}
	if len(values) > 1 {
		selection.From = values[1]
	}
	if len(values) > 2 {
		selection.To = values[2]
		if selection.To < selection.From {
			return Selection{}, fmt.Errorf("verse range %d..%d is reversed", selection.From, selection.To)
		}
	}
	return selection, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--passage FILE] [--debug] <command> [args]

Commands:
  recite SURAH [FROM [TO]]         Listen to the microphone and confirm recited words
  replay FILE SURAH [FROM [TO]]    Match a recorded recognizer script instead of the microphone
  toggle    Stop the running recitation
  stop      Stop the running recitation, keeping progress
  reset     Clear progress of the running session
  status    Print state, progress, and current verse
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH    Config file path (default: $XDG_CONFIG_HOME/hifz/config.jsonc)
  --passage FILE   Read surah JSON from FILE instead of the content API
  --debug          Log every recognizer segment
  -h, --help       Show help
  --version        Show version
`, binaryName)
}
