package main

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainHelp(t *testing.T) {
	output, err := runParley(t, "--help")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "Usage:")
	require.Contains(t, string(output), "parley [--config PATH] <command>")
}

func TestMainVersion(t *testing.T) {
	output, err := runParley(t, "version")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "parley dev")
}

func TestMainInvalidCommandExitsWithUsageCode(t *testing.T) {
	output, err := runParley(t, "interrogate")
	require.Contains(t, string(output), "unknown command")

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.ExitCode())
}

// TestMainProcess re-executes the test binary as parley when PARLEY_MAIN is
// set, with the CLI arguments after "--".
func TestMainProcess(t *testing.T) {
	if os.Getenv("PARLEY_MAIN") != "1" {
		t.Skip("helper process")
	}
	for i, arg := range os.Args {
		if arg == "--" {
			os.Args = append([]string{"parley"}, os.Args[i+1:]...)
			break
		}
	}
	main()
}

func runParley(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], append([]string{"-test.run=^TestMainProcess$", "--"}, args...)...)
	cmd.Env = append(os.Environ(),
		"PARLEY_MAIN=1",
		"XDG_STATE_HOME="+t.TempDir(),
		"XDG_CONFIG_HOME="+t.TempDir(),
	)
	return cmd.CombinedOutput()
}
