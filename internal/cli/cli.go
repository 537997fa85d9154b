// Package cli parses parley's command line. It is hand-rolled so global
// flags may precede the command and command flags may follow it.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandResults Command = "results"
	CommandHistory Command = "history"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// commandInfo drives both parsing and the help text, in help order.
type commandInfo struct {
	name    Command
	summary string
	format  bool
}

var commands = []commandInfo{
	{name: CommandRun, summary: "Set up and conduct an interview session", format: true},
	{name: CommandResults, summary: "Print results for a session id (API first, then local archive)", format: true},
	{name: CommandHistory, summary: "List archived sessions, newest first", format: true},
	{name: CommandStop, summary: "Submit the answer currently being recorded"},
	{name: CommandCancel, summary: "Abort the active interview session"},
	{name: CommandStatus, summary: "Print current session state"},
	{name: CommandDevices, summary: "List available input devices"},
	{name: CommandDoctor, summary: "Run configuration and environment checks"},
	{name: CommandVersion, summary: "Print version information"},
	{name: CommandHelp, summary: "Show this help"},
}

func lookup(name string) (commandInfo, bool) {
	for _, info := range commands {
		if string(info.name) == name {
			return info, true
		}
	}
	return commandInfo{}, false
}

// RunFlags override interview setup defaults from config.
type RunFlags struct {
	Candidate string
	Job       string
	JobFile   string
	Questions int
	Duration  int
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Format     string
	SessionID  string
	Run        RunFlags
}

// argScanner walks argv, splitting "--flag=value" forms on the fly.
type argScanner struct {
	args []string
	pos  int
}

// next returns the next flag or word. inline holds the "=value" part of a
// "--flag=value" argument.
func (s *argScanner) next() (arg string, inline *string, ok bool) {
	if s.pos >= len(s.args) {
		return "", nil, false
	}
	arg = s.args[s.pos]
	s.pos++
	if strings.HasPrefix(arg, "--") {
		if name, value, found := strings.Cut(arg, "="); found {
			return name, &value, true
		}
	}
	return arg, nil, true
}

func (s *argScanner) value(flag string, inline *string, what string) (string, error) {
	if inline != nil {
		return *inline, nil
	}
	if s.pos >= len(s.args) {
		return "", fmt.Errorf("%s requires %s", flag, what)
	}
	s.pos++
	return s.args[s.pos-1], nil
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	scan := &argScanner{args: args}

	for {
		arg, inline, ok := scan.next()
		if !ok {
			return parsed, nil
		}

		switch {
		case arg == "-h" || arg == "--help":
			parsed.Command, parsed.ShowHelp = CommandHelp, true
		case arg == "--version":
			parsed.Command, parsed.ShowHelp = CommandVersion, false
		case arg == "--config":
			path, err := scan.value(arg, inline, "a path")
			if err != nil {
				return Parsed{}, err
			}
			parsed.ConfigPath = path
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			info, known := lookup(arg)
			if !known {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = info.name
			parsed.ShowHelp = info.name == CommandHelp
			if err := parseCommandArgs(&parsed, info, scan); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}
}

// parseCommandArgs consumes the flags and positionals that follow a command.
func parseCommandArgs(parsed *Parsed, info commandInfo, scan *argScanner) error {
	cmd := info.name
	for {
		arg, inline, ok := scan.next()
		if !ok {
			break
		}

		switch {
		case arg == "--format" && info.format:
			v, err := scan.value(arg, inline, "a value")
			if err != nil {
				return err
			}
			parsed.Format = v
		case cmd == CommandRun && isRunFlag(arg):
			v, err := scan.value(arg, inline, "a value")
			if err != nil {
				return err
			}
			if err := applyRunFlag(&parsed.Run, arg, v); err != nil {
				return err
			}
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag for %s: %s", cmd, arg)
		case cmd == CommandResults && parsed.SessionID == "":
			parsed.SessionID = strings.TrimSpace(arg)
		default:
			return fmt.Errorf("unexpected arguments after command %q", string(cmd))
		}
	}

	if cmd == CommandResults && parsed.SessionID == "" {
		return errors.New("results requires a session id")
	}
	return nil
}

func isRunFlag(arg string) bool {
	switch arg {
	case "--candidate", "--job", "--job-file", "--questions", "--duration":
		return true
	}
	return false
}

func applyRunFlag(run *RunFlags, flag string, value string) error {
	var err error
	switch flag {
	case "--candidate":
		run.Candidate = value
	case "--job":
		run.Job = value
	case "--job-file":
		run.JobFile = value
	case "--questions":
		run.Questions, err = positiveInt(flag, value)
	case "--duration":
		run.Duration, err = positiveInt(flag, value)
	}
	return err
}

func positiveInt(flag string, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s requires a positive integer, got %q", flag, value)
	}
	return n, nil
}

func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command> [command flags]\n\nCommands:\n", binaryName)
	for _, info := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", info.name, info.summary)
	}
	b.WriteString(`
Run flags:
  --candidate NAME   Candidate name (min 3 characters)
  --job TEXT         Job description (min 11 characters)
  --job-file PATH    Read the job description from a file
  --questions N      Number of questions (1-20)
  --duration MIN     Interview length in minutes (3-60), instead of --questions

Output flags (run, results, history):
  --format FORMAT    text, json, or yaml

Flags:
  --config PATH   Config file path (default: $PARLEY_CONFIG, then $XDG_CONFIG_HOME/parley/config.jsonc)
  -h, --help      Show help
  --version       Show version

Flags also accept the --flag=value form.
`)
	return b.String()
}
