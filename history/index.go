package history

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

const indexBatchSize = 32

// Index is a vector index over redacted history commands. Embeddings are
// persisted to a disk cache so a one-shot invocation only embeds commands it
// has not seen before.
type Index struct {
	reader   *Reader
	embedder *Embedder

	mu       sync.RWMutex
	graph    *hnsw.Graph[string] // keyed by command hash
	commands map[string]string   // hash -> redacted command text
}

// NewIndex creates an index over the reader's history. embedder must not be
// nil; callers disable semantic search by not constructing an Index at all.
func NewIndex(reader *Reader, embedder *Embedder) *Index {
	return &Index{
		reader:   reader,
		embedder: embedder,
		graph:    hnsw.NewGraph[string](),
		commands: make(map[string]string),
	}
}

// Refresh embeds history commands not already in the index and returns how
// many were added. Each command is redacted before it is sent to the
// embedding API.
func (idx *Index) Refresh(ctx context.Context) (int, error) {
	cmds := idx.reader.TailCommands()
	if len(cmds) == 0 {
		return 0, nil
	}

	idx.mu.RLock()
	var toEmbed []struct {
		hash string
		cmd  string
	}
	for _, cmd := range cmds {
		hash := hashCommand(cmd)
		if _, exists := idx.graph.Lookup(hash); !exists {
			toEmbed = append(toEmbed, struct {
				hash string
				cmd  string
			}{hash, cmd})
		}
	}
	idx.mu.RUnlock()

	if len(toEmbed) == 0 {
		return 0, nil
	}

	var allNodes []hnsw.Node[string]
	allCommands := make(map[string]string, len(toEmbed))

	for i := 0; i < len(toEmbed); i += indexBatchSize {
		end := i + indexBatchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		batch := toEmbed[i:end]

		redacted := make([]string, len(batch))
		for j, b := range batch {
			redacted[j] = Redact(b.cmd)
		}

		vectors, err := idx.embedder.EmbedBatch(ctx, redacted)
		if err != nil {
			slog.Error("batch embed error", "error", err)
			continue
		}

		for j, b := range batch {
			allNodes = append(allNodes, hnsw.MakeNode(b.hash, vectors[j]))
			allCommands[b.hash] = redacted[j]
		}
	}

	if len(allNodes) > 0 {
		idx.mu.Lock()
		idx.graph.Add(allNodes...)
		for k, v := range allCommands {
			idx.commands[k] = v
		}
		idx.mu.Unlock()
	}

	return len(allNodes), nil
}

// Search embeds the query and returns the topK most similar commands.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]string, error) {
	queryVec, err := idx.embedder.Embed(ctx, Redact(query))
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph.Len() == 0 || topK <= 0 {
		return nil, nil
	}

	neighbors := idx.graph.Search(queryVec, topK)
	commands := make([]string, len(neighbors))
	for i, n := range neighbors {
		commands[i] = idx.commands[n.Key]
	}
	return commands, nil
}

type cacheFile struct {
	Model   string       `json:"model"`
	Entries []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Hash      string    `json:"hash"`
	Command   string    `json:"command"`
	Embedding []float32 `json:"embedding"`
}

// SaveCache writes the current index (commands + embeddings) to disk.
func (idx *Index) SaveCache(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]cacheEntry, 0, len(idx.commands))
	for hash, cmd := range idx.commands {
		vec, ok := idx.graph.Lookup(hash)
		if !ok {
			continue
		}
		entries = append(entries, cacheEntry{Hash: hash, Command: cmd, Embedding: vec})
	}

	data, err := json.Marshal(cacheFile{Model: idx.embedder.Model(), Entries: entries})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCache loads a previously saved index from disk. A cache written with a
// different embedding model is silently skipped.
func (idx *Index) LoadCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return err
	}

	if cf.Model != idx.embedder.Model() {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	nodes := make([]hnsw.Node[string], 0, len(cf.Entries))
	for _, e := range cf.Entries {
		nodes = append(nodes, hnsw.MakeNode(e.Hash, e.Embedding))
		idx.commands[e.Hash] = e.Command
	}

	if len(nodes) > 0 {
		idx.graph.Add(nodes...)
	}

	return nil
}

func hashCommand(cmd string) string {
	h := sha256.Sum256([]byte(cmd))
	return fmt.Sprintf("%x", h)
}
