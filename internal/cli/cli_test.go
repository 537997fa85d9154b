package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Parsed
	}{
		{
			name: "no args shows help",
			want: Parsed{Command: CommandHelp, ShowHelp: true},
		},
		{
			name: "help command",
			args: []string{"help"},
			want: Parsed{Command: CommandHelp, ShowHelp: true},
		},
		{
			name: "version flag",
			args: []string{"--version"},
			want: Parsed{Command: CommandVersion},
		},
		{
			name: "config before command",
			args: []string{"--config", "/tmp/parley.jsonc", "doctor"},
			want: Parsed{Command: CommandDoctor, ConfigPath: "/tmp/parley.jsonc"},
		},
		{
			name: "config equals form",
			args: []string{"--config=/tmp/a=b.jsonc", "status"},
			want: Parsed{Command: CommandStatus, ConfigPath: "/tmp/a=b.jsonc"},
		},
		{
			name: "run flags",
			args: []string{"run", "--candidate", "Ada Lovelace", "--job=Senior Go engineer", "--questions", "3", "--format", "json"},
			want: Parsed{
				Command: CommandRun,
				Format:  "json",
				Run:     RunFlags{Candidate: "Ada Lovelace", Job: "Senior Go engineer", Questions: 3},
			},
		},
		{
			name: "run from job file with duration",
			args: []string{"run", "--job-file", "/tmp/jd.txt", "--duration=10"},
			want: Parsed{Command: CommandRun, Run: RunFlags{JobFile: "/tmp/jd.txt", Duration: 10}},
		},
		{
			name: "results positional then format",
			args: []string{"results", "s-42", "--format", "yaml"},
			want: Parsed{Command: CommandResults, SessionID: "s-42", Format: "yaml"},
		},
		{
			name: "results format then positional",
			args: []string{"results", "--format=text", " s-42 "},
			want: Parsed{Command: CommandResults, SessionID: "s-42", Format: "text"},
		},
		{
			name: "history format",
			args: []string{"history", "--format", "json"},
			want: Parsed{Command: CommandHistory, Format: "json"},
		},
		{
			name: "help flag wins over nothing",
			args: []string{"--config", "/tmp/x.jsonc", "-h"},
			want: Parsed{Command: CommandHelp, ShowHelp: true, ConfigPath: "/tmp/x.jsonc"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"interrogate"}, want: "unknown command: interrogate"},
		{args: []string{"--verbose", "run"}, want: "unknown flag: --verbose"},
		{args: []string{"--config"}, want: "--config requires a path"},
		{args: []string{"status", "--format", "json"}, want: "unknown flag for status: --format"},
		{args: []string{"stop", "now"}, want: `unexpected arguments after command "stop"`},
		{args: []string{"results"}, want: "results requires a session id"},
		{args: []string{"results", "s-1", "s-2"}, want: `unexpected arguments after command "results"`},
		{args: []string{"run", "--candidate"}, want: "--candidate requires a value"},
		{args: []string{"run", "--questions", "three"}, want: "--questions requires a positive integer"},
		{args: []string{"run", "--duration=0"}, want: "--duration requires a positive integer"},
		{args: []string{"run", "--seniority", "staff"}, want: "unknown flag for run: --seniority"},
		{args: []string{"history", "-n"}, want: "unknown flag for history: -n"},
	}

	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			_, err := Parse(tc.args)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestHelpTextListsEveryCommand(t *testing.T) {
	text := HelpText("parley")
	require.True(t, strings.HasPrefix(text, "Usage:\n  parley [--config PATH] <command>"))
	for _, info := range commands {
		require.Contains(t, text, "  "+string(info.name)+" ")
		require.Contains(t, text, info.summary)
	}
	require.Contains(t, text, "--format FORMAT")
	require.Contains(t, text, "--job-file PATH")
}
