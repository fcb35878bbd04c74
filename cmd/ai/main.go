// Command ai is a terminal assistant. It answers natural-language questions
// and, via the shell's pre-prompt hook, explains commands that just failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	termai "github.com/termai/termai"
	"github.com/termai/termai/assist"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = `usage:
  ai <question>               ask a question
  ai chat <question>          ask a question
  ai fix                      explain the last failed command from history
  ai build <description>      build a shell command from a description (future)
  ai --version                print version and exit

flags:
  --verbose                   enable debug logging`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	inv, opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, errShowVersion) {
			fmt.Println("ai", Version)
			return 0
		}
		if errors.Is(err, errBuildPlaceholder) {
			color.Yellow("Sorry, the 'build' command (generating commands from description) is not yet implemented.")
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	cfg, err := termai.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if opts.verbose || cfg.DebugMode {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	out, err := assist.NewHandler(cfg).Run(context.Background(), inv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	assist.Render(os.Stdout, out)
	return 0
}

var (
	errShowVersion      = errors.New("show version")
	errBuildPlaceholder = errors.New("build not implemented")
)

type options struct {
	verbose bool
}

// parseArgs maps the command line onto an invocation. Three entry forms
// exist: a free-form question (optionally prefixed with "chat"), the manual
// "fix" subcommand, and the hidden hook form the shell integration calls with
// the failed command and its exit code.
func parseArgs(args []string) (termai.Invocation, options, error) {
	var opts options

	rest := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "--version":
			return termai.Invocation{}, opts, errShowVersion
		case "--verbose":
			opts.verbose = true
		default:
			rest = append(rest, a)
		}
	}

	if len(rest) == 0 {
		return termai.Invocation{}, opts, errors.New("no query given")
	}

	switch rest[0] {
	case "--internal-fix-error":
		fs := flag.NewFlagSet("internal-fix-error", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		command := fs.String("command", "", "the failed command")
		exitCode := fs.Int("exit_code", termai.ExitCodeUnknown, "the command's exit status")
		if err := fs.Parse(rest[1:]); err != nil {
			return termai.Invocation{}, opts, err
		}
		if *command == "" {
			return termai.Invocation{}, opts, errors.New("--internal-fix-error requires --command")
		}
		return termai.Invocation{
			Mode:     termai.ModeFix,
			Command:  *command,
			ExitCode: *exitCode,
			Auto:     true,
		}, opts, nil

	case "fix":
		if len(rest) > 1 {
			return termai.Invocation{}, opts, errors.New("fix takes no arguments")
		}
		return termai.Invocation{
			Mode:     termai.ModeFix,
			ExitCode: termai.ExitCodeUnknown,
		}, opts, nil

	case "build":
		if len(rest) == 1 {
			return termai.Invocation{}, opts, errors.New("build requires a description")
		}
		return termai.Invocation{}, opts, errBuildPlaceholder

	case "chat":
		if len(rest) == 1 {
			return termai.Invocation{}, opts, errors.New("no query given")
		}
		rest = rest[1:]
		fallthrough
	default:
		return termai.Invocation{
			Mode:  termai.ModeChat,
			Query: strings.Join(rest, " "),
		}, opts, nil
	}
}
