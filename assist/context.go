package assist

import (
	"context"
	"log/slog"

	termai "github.com/termai/termai"
	"github.com/termai/termai/history"
)

// Info holds gathered history context for a fix request.
type Info struct {
	RecentCommands   []string
	RelevantCommands []string
}

// Gatherer collects shell-history context for fix prompts. When an embedding
// endpoint is configured it also maintains a semantic index with an on-disk
// cache, so each one-shot invocation only embeds commands it has not seen.
type Gatherer struct {
	reader       *history.Reader
	index        *history.Index // nil when embedding is not configured
	cachePath    string
	noRawHistory bool
}

// NewGatherer creates a context gatherer from config.
func NewGatherer(cfg *termai.Config) *Gatherer {
	reader := history.NewReader(cfg.Context.MaxHistoryCommands)

	g := &Gatherer{
		reader:       reader,
		cachePath:    termai.CachePath(),
		noRawHistory: cfg.Context.NoRawHistory,
	}

	if termai.EmbeddingEnabled(cfg) {
		embedder := history.NewEmbedder(
			cfg.Context.Embedding.BaseURL,
			cfg.Context.Embedding.APIKey,
			cfg.Context.Embedding.Model,
		)
		g.index = history.NewIndex(reader, embedder)
		if err := g.index.LoadCache(g.cachePath); err != nil {
			slog.Debug("no embedding cache loaded", "error", err)
		}
	}

	return g
}

// Reader returns the underlying history reader.
func (g *Gatherer) Reader() *history.Reader { return g.reader }

// Gather collects history context relevant to the failed command.
func (g *Gatherer) Gather(ctx context.Context, failedCommand string) *Info {
	info := &Info{}

	if !g.noRawHistory {
		info.RecentCommands = g.reader.Recent(20)
	}

	if g.index == nil {
		return info
	}

	added, err := g.index.Refresh(ctx)
	if err != nil {
		slog.Warn("history indexing failed", "error", err)
		return info
	}
	if cmds, err := g.index.Search(ctx, failedCommand, 5); err == nil && len(cmds) > 0 {
		info.RelevantCommands = cmds
	} else if err != nil {
		slog.Warn("semantic history search failed", "error", err)
	}

	// The cache is only stale when new commands were embedded.
	if added > 0 {
		if err := g.index.SaveCache(g.cachePath); err != nil {
			slog.Warn("failed to save embedding cache", "error", err)
		}
	}

	return info
}
