package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	termai "github.com/termai/termai"
)

func TestNewDispatchesAnthropic(t *testing.T) {
	t.Setenv("TERMAI_API_PROVIDER", "")
	cfg := termai.DefaultConfig()
	c := New(cfg)
	if _, ok := c.(*anthropicClient); !ok {
		t.Fatalf("expected anthropic client, got %T", c)
	}
	if err := Check(c); err != nil {
		t.Errorf("anthropic client should pass Check: %v", err)
	}
}

func TestNewDispatchesOpenAIPlaceholder(t *testing.T) {
	t.Setenv("TERMAI_API_PROVIDER", "")
	cfg := termai.DefaultConfig()
	cfg.APIProvider = termai.ProviderOpenAI
	c := New(cfg)

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	var notImpl *NotImplementedError
	if !errors.As(err, &notImpl) {
		t.Fatalf("expected NotImplementedError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "not fully implemented yet") {
		t.Errorf("unexpected message: %v", err)
	}
	if err := Check(c); !errors.As(err, &notImpl) {
		t.Errorf("Check should report the placeholder: %v", err)
	}
}

func TestNewUnknownProviderFallsBackToUnsupported(t *testing.T) {
	t.Setenv("TERMAI_API_PROVIDER", "")
	cfg := termai.DefaultConfig()
	cfg.APIProvider = "gemini"
	c := New(cfg)

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	var unsup *UnsupportedError
	if !errors.As(err, &unsup) {
		t.Fatalf("expected UnsupportedError, got %T: %v", err, err)
	}
	if unsup.Provider != "gemini" {
		t.Errorf("expected provider name in error, got %q", unsup.Provider)
	}
	if c.Name() != "gemini" {
		t.Errorf("unexpected Name %q", c.Name())
	}
}

func TestNewHonorsProviderEnvOverride(t *testing.T) {
	t.Setenv("TERMAI_API_PROVIDER", "openai")
	cfg := termai.DefaultConfig()
	c := New(cfg)
	if _, ok := c.(openaiPlaceholder); !ok {
		t.Fatalf("expected openai placeholder via env override, got %T", c)
	}
}

func TestAPIErrorFormatting(t *testing.T) {
	withStatus := &APIError{StatusCode: 500, Message: "boom"}
	if got := withStatus.Error(); got != "API error (status 500): boom" {
		t.Errorf("unexpected message %q", got)
	}
	inBand := &APIError{Message: "boom"}
	if got := inBand.Error(); got != "API error: boom" {
		t.Errorf("unexpected message %q", got)
	}
}
