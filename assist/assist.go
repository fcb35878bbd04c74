// Package assist runs one completion request end to end: skip checks, context
// gathering, prompt assembly, the provider call, and error shaping.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	termai "github.com/termai/termai"
	"github.com/termai/termai/provider"
)

// Handler processes a single invocation. It holds no state beyond its
// configuration and collaborators; every process constructs one, runs it
// once, and exits.
type Handler struct {
	cfg          *termai.Config
	client       provider.Client
	gatherer     *Gatherer
	customPrompt string
}

// NewHandler builds a handler with the provider client selected by config.
func NewHandler(cfg *termai.Config) *Handler {
	return NewHandlerWithClient(cfg, provider.New(cfg))
}

// NewHandlerWithClient builds a handler around an explicit client. Tests use
// this to substitute a recording client.
func NewHandlerWithClient(cfg *termai.Config, client provider.Client) *Handler {
	return &Handler{
		cfg:          cfg,
		client:       client,
		gatherer:     NewGatherer(cfg),
		customPrompt: loadCustomPrompt(),
	}
}

// Run processes the invocation. A non-nil error is fatal (bad config, missing
// API key); everything else, including provider failures, comes back inside
// the outcome so the caller renders it and exits zero.
func (h *Handler) Run(ctx context.Context, inv termai.Invocation) (*termai.Outcome, error) {
	// The skip decision comes before any validation so that a successful
	// command never trips over a missing API key.
	if inv.Auto {
		if !h.cfg.AutoFixErrors {
			slog.Debug("auto fix disabled, skipping")
			return &termai.Outcome{Skipped: true}, nil
		}
		if h.cfg.ShouldSkipExitCode(inv.ExitCode) {
			slog.Debug("exit code in skip list", "exit_code", inv.ExitCode)
			return &termai.Outcome{Skipped: true}, nil
		}
	}

	if err := termai.ValidateProviderKey(h.cfg); err != nil {
		return nil, err
	}

	// A provider that can never complete fails before any history reads or
	// embedding calls happen.
	if err := provider.Check(h.client); err != nil {
		return &termai.Outcome{Error: toError(err)}, nil
	}

	switch inv.Mode {
	case termai.ModeChat:
		return h.runChat(ctx, inv)
	case termai.ModeFix:
		return h.runFix(ctx, inv)
	default:
		return nil, fmt.Errorf("unknown mode %q", inv.Mode)
	}
}

func (h *Handler) runChat(ctx context.Context, inv termai.Invocation) (*termai.Outcome, error) {
	text, err := h.complete(ctx, inv.Mode, buildChatPrompt(inv.Query))
	if err != nil {
		return &termai.Outcome{Error: toError(err)}, nil
	}
	return &termai.Outcome{Title: "AI Chat", Text: text}, nil
}

func (h *Handler) runFix(ctx context.Context, inv termai.Invocation) (*termai.Outcome, error) {
	if inv.Command == "" {
		cmd := h.gatherer.Reader().LastCommand()
		if cmd == "" {
			return &termai.Outcome{Error: &termai.Error{
				Code:    "no_command",
				Message: "could not determine the command that failed",
			}}, nil
		}
		inv.Command = cmd
	}

	info := h.gatherer.Gather(ctx, inv.Command)

	var wd *WorkdirContext
	if h.cfg.Context.Workdir {
		cwd, err := os.Getwd()
		if err == nil {
			wd = GatherWorkdir(ctx, cwd)
		} else {
			slog.Warn("could not determine working directory", "error", err)
		}
	}

	text, err := h.complete(ctx, inv.Mode, buildFixPrompt(inv, info, wd))
	if err != nil {
		return &termai.Outcome{Error: toError(err)}, nil
	}
	return &termai.Outcome{
		Title: fmt.Sprintf("AI Fix Suggestion (for `%s`)", inv.Command),
		Text:  text,
	}, nil
}

func (h *Handler) complete(ctx context.Context, mode termai.Mode, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout())
	defer cancel()

	slog.Debug("sending completion request", "provider", h.client.Name())
	return h.client.Complete(ctx, provider.Request{
		System: h.systemPrompt(mode),
		Prompt: prompt,
	})
}

// toError maps provider failures onto the user-visible error codes.
func toError(err error) *termai.Error {
	var notImpl *provider.NotImplementedError
	if errors.As(err, &notImpl) {
		return &termai.Error{Code: "not_implemented", Message: notImpl.Error()}
	}
	var unsupported *provider.UnsupportedError
	if errors.As(err, &unsupported) {
		return &termai.Error{Code: "unsupported_provider", Message: unsupported.Error()}
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return &termai.Error{Code: "api_error", Message: apiErr.Error()}
	}
	return &termai.Error{Code: "api_error", Message: fmt.Sprintf("request failed: %v", err)}
}
