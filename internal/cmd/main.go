package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/requests/internal/version"
)

// logLevelEnv names the environment variable holding the log level.
const logLevelEnv = "REQUESTS_LOG_LEVEL"

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	return run(args, os.Stdin, os.Stdout, os.Stderr)
}

// run is Main with explicit streams. Invoked without a subcommand it prints
// the command list and exits 0.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	name := "requests"
	if len(args) > 0 {
		name = args[0]
		args = args[1:]
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(os.Getenv(logLevelEnv)),
		Output: stderr,
	})

	switch {
	case len(args) == 1 && (args[0] == "-v" || args[0] == "-version" || args[0] == "--version"):
		args = []string{"version"}
	case len(args) == 0:
		args = []string{"-help"}
	}

	initCommands(log, &cli.BasicUi{
		Reader:      bufio.NewReader(stdin),
		Writer:      stdout,
		ErrorWriter: stderr,
	})

	c := &cli.CLI{
		Name:        name,
		Args:        args,
		Version:     version.Version,
		Commands:    Commands,
		HelpFunc:    helpFunc(name),
		HelpWriter:  stdout,
		ErrorWriter: stderr,
	}

	code, err := c.Run()
	if err != nil {
		fmt.Fprintf(stderr, "error executing CLI: %v\n", err)
		return 1
	}
	return code
}

// helpFunc extends the basic command list with the environment the CLI reads.
func helpFunc(name string) cli.HelpFunc {
	basic := cli.BasicHelpFunc(name)
	return func(commands map[string]cli.CommandFactory) string {
		return basic(commands) + fmt.Sprintf("\nEnvironment:\n    %s    log level (trace, debug, info, warn, error)\n", logLevelEnv)
	}
}
