package assist

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/template"

	termai "github.com/termai/termai"
	defaults "github.com/termai/termai/default"
	"github.com/termai/termai/history"
)

// loadCustomPrompt loads the user's system prompt override.
// Returns empty string when no override exists.
func loadCustomPrompt() string {
	promptPath := termai.PromptPath()
	data, err := os.ReadFile(promptPath)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", promptPath)
	return string(data)
}

// promptData holds the data passed to the system prompt template.
type promptData struct {
	Mode termai.Mode
}

// systemPrompt renders the system prompt template (custom override or the
// embedded default). A broken custom template falls back to the default.
func (h *Handler) systemPrompt(mode termai.Mode) string {
	tmplSrc := h.customPrompt
	if tmplSrc == "" {
		tmplSrc = defaults.SystemPrompt
	}

	data := promptData{Mode: mode}

	t, err := template.New("prompt").Parse(tmplSrc)
	if err != nil {
		slog.Warn("failed to parse prompt template, falling back to default", "error", err)
		t, _ = template.New("prompt").Parse(defaults.SystemPrompt)
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Warn("failed to execute prompt template, falling back to default", "error", err)
		t, _ = template.New("prompt").Parse(defaults.SystemPrompt)
		buf.Reset()
		if err := t.Execute(&buf, data); err != nil {
			// The embedded default has no directives that can fail, but a
			// bad edit to it should not silently send an empty prompt.
			slog.Warn("default prompt template failed to execute", "error", err)
			return strings.TrimRight(defaults.SystemPrompt, " \t\n")
		}
	}

	return strings.TrimRight(buf.String(), " \t\n")
}

// buildChatPrompt wraps a free-form terminal question.
func buildChatPrompt(query string) string {
	return fmt.Sprintf("The user asked the following question in their terminal: '%s'. "+
		"Provide a helpful answer or relevant command(s).", query)
}

// buildFixPrompt embeds the failed command and its exit code, followed by any
// gathered context. History commands are redacted before inclusion; the
// failed command itself is sent as typed.
func buildFixPrompt(inv termai.Invocation, info *Info, wd *WorkdirContext) string {
	var sb strings.Builder

	if inv.ExitCode == termai.ExitCodeUnknown {
		sb.WriteString("The following shell command failed with an unknown exit code:\n")
	} else {
		fmt.Fprintf(&sb, "The following shell command failed with exit code %d:\n", inv.ExitCode)
	}
	sb.WriteString("```\n")
	sb.WriteString(inv.Command)
	sb.WriteString("\n```\n")
	sb.WriteString("Explain the likely reason for the error and suggest one or more specific " +
		"commands to fix it or achieve the user's likely intent. " +
		"If it's a simple typo, point it out. Be concise.\n")

	if wd != nil {
		if wd.Path != "" {
			sb.WriteString("\ncwd: ")
			sb.WriteString(wd.Path)
		}
		if wd.Listing != "" {
			sb.WriteString("\nfiles: ")
			sb.WriteString(wd.Listing)
		}
		if wd.PackageManager != "" {
			sb.WriteString("\npkg: ")
			sb.WriteString(wd.PackageManager)
		}
		if wd.GitStagedFiles != "" {
			sb.WriteString("\nstaged: ")
			sb.WriteString(wd.GitStagedFiles)
		}
		labels := make([]string, 0, len(wd.Manifests))
		for label := range wd.Manifests {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			sb.WriteString("\n")
			sb.WriteString(label)
			sb.WriteString(": ")
			sb.WriteString(wd.Manifests[label])
		}
		sb.WriteString("\n")
	}

	if info != nil {
		recent := info.RecentCommands
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		recent = history.RedactAll(recent)
		if len(recent) > 0 {
			sb.WriteString("\nrecent: ")
			sb.WriteString(strings.Join(recent, ", "))
			sb.WriteString("\n")
		}
		// Relevant commands come out of the index already redacted.
		if len(info.RelevantCommands) > 0 {
			sb.WriteString("related: ")
			sb.WriteString(strings.Join(info.RelevantCommands, ", "))
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
