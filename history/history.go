// Package history reads, redacts, and indexes the user's shell history.
package history

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Reader provides access to the user's shell history file.
type Reader struct {
	path string
	max  int
}

// NewReader creates a reader capped at max commands per read.
func NewReader(max int) *Reader {
	if max <= 0 {
		max = 3000
	}
	return &Reader{path: resolvePath(), max: max}
}

// Path returns the resolved history file path, empty when none was found.
func (r *Reader) Path() string { return r.path }

// resolvePath picks the single most recently modified history file.
func resolvePath() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, ".zsh_history"),
		filepath.Join(home, ".bash_history"),
	}

	if hf := os.Getenv("HISTFILE"); hf != "" {
		candidates = append([]string{hf}, candidates...)
	}

	var bestPath string
	var bestTime time.Time

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			bestTime = info.ModTime()
			bestPath = path
		}
	}

	return bestPath
}

// Recent returns the last n commands from the history file, oldest first.
func (r *Reader) Recent(n int) []string {
	if r.path == "" {
		return nil
	}
	lines := readLastLines(r.path, n)
	cmds := make([]string, 0, len(lines))
	for _, line := range lines {
		cmd := parseLine(line)
		if cmd != "" {
			cmds = append(cmds, cmd)
		}
	}
	if len(cmds) > n {
		cmds = cmds[len(cmds)-n:]
	}
	return cmds
}

// LastCommand returns the most recent history entry that is not itself an
// `ai` invocation, so that `ai fix` analyzes the command that came before it.
func (r *Reader) LastCommand() string {
	cmds := r.Recent(20)
	for i := len(cmds) - 1; i >= 0; i-- {
		cmd := cmds[i]
		if cmd == "ai" || strings.HasPrefix(cmd, "ai ") {
			continue
		}
		return cmd
	}
	return ""
}

// TailCommands returns up to the reader's cap of deduplicated commands from
// the end of the history file. Used to feed the semantic index.
func (r *Reader) TailCommands() []string {
	if r.path == "" {
		return nil
	}
	lines := readLastLines(r.path, r.max)
	cmds := make([]string, 0, len(lines))
	seen := make(map[string]bool)
	for _, line := range lines {
		cmd := parseLine(line)
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		cmds = append(cmds, cmd)
	}
	return cmds
}

// parseLine strips shell-specific prefixes from history lines.
// Zsh extended history format: ": 1234567890:0;actual command"
// Bash format: just the command (no prefix)
func parseLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if strings.HasPrefix(line, ": ") {
		if idx := strings.Index(line, ";"); idx != -1 {
			return strings.TrimSpace(line[idx+1:])
		}
	}
	return line
}

func readLastLines(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil
	}

	// Seek near the end for large files; ~100 bytes per line is generous.
	estimatedBytes := int64(n) * 100
	if estimatedBytes < info.Size() {
		if _, err := f.Seek(-estimatedBytes, io.SeekEnd); err == nil {
			reader := bufio.NewReader(f)
			reader.ReadString('\n') // skip partial first line
			var lines []string
			scanner := bufio.NewScanner(reader)
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
			if len(lines) >= n {
				return lines[len(lines)-n:]
			}
			// Not enough lines, fall through to full read
		}
		f.Seek(0, io.SeekStart)
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
