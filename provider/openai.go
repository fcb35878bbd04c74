package provider

import (
	"context"

	termai "github.com/termai/termai"
)

// openaiPlaceholder is the reserved openai variant. The config surface for it
// exists, but no request path is implemented; Complete reports that as a
// typed error without touching the network.
type openaiPlaceholder struct{}

func (openaiPlaceholder) Complete(ctx context.Context, req Request) (string, error) {
	return "", &NotImplementedError{Provider: termai.ProviderOpenAI}
}

func (openaiPlaceholder) Name() string { return termai.ProviderOpenAI }
