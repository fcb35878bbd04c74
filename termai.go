// Package termai defines the invocation and outcome types shared between the
// ai command-line front end and the request handler.
package termai

// Mode selects the request pipeline for one invocation.
type Mode string

const (
	// ModeChat answers a free-form natural-language query.
	ModeChat Mode = "chat"
	// ModeFix analyzes a previously failed shell command.
	ModeFix Mode = "fix"
)

// ExitCodeUnknown marks fix invocations where the shell did not supply an
// exit code (manual `ai fix` reads the command from history after the fact).
const ExitCodeUnknown = -1

// Invocation describes one request to the handler. Exactly one invocation is
// processed per OS process; there is no cross-invocation state.
type Invocation struct {
	Mode Mode
	// Query is the user's question (chat mode only).
	Query string
	// Command is the failed command text (fix mode only).
	Command string
	// ExitCode is the failed command's exit status, or ExitCodeUnknown.
	ExitCode int
	// Auto is true when the invocation came from the shell's pre-prompt hook
	// rather than the user typing `ai fix` directly. Auto invocations honor
	// the auto_fix_errors setting and the configured skip list.
	Auto bool
}

// Error describes a handler-side failure that is reported to the user as
// text. The process still exits zero so the shell prompt is never blocked.
type Error struct {
	// Code is a machine-readable identifier (e.g. "api_error",
	// "unsupported_provider").
	Code string
	// Message is a human-readable description.
	Message string
}

// Outcome is the result of running one invocation.
type Outcome struct {
	// Skipped is true when the handler decided not to issue a request at all
	// (auto-fix disabled, or the exit code is in the skip list). Skipped
	// outcomes produce no output.
	Skipped bool
	// Title is the heading rendered above the response text.
	Title string
	// Text is the model's response.
	Text string
	// Error is set when the request failed; Text and Title are empty then.
	Error *Error
}
