// Package provider implements the completion API clients behind a closed set
// of variants: anthropic (implemented), openai (placeholder), and an
// unsupported fallback for any other configured value.
package provider

import (
	"context"
	"fmt"

	termai "github.com/termai/termai"
)

// Request is one completion exchange. It is created, sent, and discarded
// within a single process run.
type Request struct {
	// System is the system prompt.
	System string
	// Prompt is the user message.
	Prompt string
}

// Client performs a single synchronous completion request.
type Client interface {
	// Complete sends the request and returns the response text.
	// One attempt; no retries.
	Complete(ctx context.Context, req Request) (string, error)
	// Name returns the provider identifier for display.
	Name() string
}

// New returns the client for the configured provider. Unknown providers get
// the unsupported variant; its Complete never issues a network call.
func New(cfg *termai.Config) Client {
	switch name := termai.ResolveProvider(cfg); name {
	case termai.ProviderAnthropic:
		return newAnthropic(cfg)
	case termai.ProviderOpenAI:
		return openaiPlaceholder{}
	default:
		return unsupported{name: name}
	}
}

// Check reports whether the client can actually serve completions. Placeholder
// and unsupported variants fail here so callers can bail out before doing any
// context gathering or network work.
func Check(c Client) error {
	switch v := c.(type) {
	case openaiPlaceholder:
		return &NotImplementedError{Provider: termai.ProviderOpenAI}
	case unsupported:
		return &UnsupportedError{Provider: v.name}
	default:
		return nil
	}
}

// NotImplementedError is returned by placeholder provider variants.
type NotImplementedError struct {
	Provider string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s support is not fully implemented yet", e.Provider)
}

// UnsupportedError is returned when the configured provider is not one of
// the known variants.
type UnsupportedError struct {
	Provider string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unknown API provider %q configured", e.Provider)
}

// APIError describes a non-2xx or in-band error response from a provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// unsupported is the fallback variant for unrecognized provider values.
type unsupported struct {
	name string
}

func (u unsupported) Complete(ctx context.Context, req Request) (string, error) {
	return "", &UnsupportedError{Provider: u.name}
}

func (u unsupported) Name() string { return u.name }
