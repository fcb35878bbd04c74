package assist

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// WorkdirContext holds gathered context for the directory the failed command
// ran in.
type WorkdirContext struct {
	Path           string
	Listing        string            // directory entries, space-separated
	Manifests      map[string]string // manifest label -> extracted summary
	PackageManager string            // detected from lockfile presence
	GitStagedFiles string
}

const (
	gatherTimeout    = 5 * time.Second
	manifestMaxBytes = 512
	fieldMaxBytes    = 512
)

// GatherWorkdir collects context for the given directory. Failures of the
// individual probes leave their fields empty.
func GatherWorkdir(ctx context.Context, cwd string) *WorkdirContext {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	wd := &WorkdirContext{
		Path:      cwd,
		Manifests: make(map[string]string),
	}

	wd.Listing = listDir(cwd)
	wd.GitStagedFiles = stagedFiles(ctx, cwd)
	gatherManifests(cwd, wd.Manifests)
	wd.PackageManager = detectPackageManager(cwd)

	return wd
}

// listDir returns the directory's entries on one line, dotfiles included.
func listDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return truncate(strings.Join(names, " "), fieldMaxBytes)
}

// stagedFiles returns `git diff --cached --name-status` condensed to one line
// with change-type prefixes (e.g. "M:file.go A:new.go").
func stagedFiles(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--name-status")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}

	var parts []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		// Normalize rename/copy status (R100, C080 → R, C)
		if len(status) > 1 && (status[0] == 'R' || status[0] == 'C') {
			status = status[:1]
		}
		if (status == "R" || status == "C") && len(fields) >= 3 {
			parts = append(parts, status+":"+fields[1]+"→"+fields[2])
		} else {
			parts = append(parts, status+":"+fields[1])
		}
	}
	return truncate(strings.Join(parts, " "), fieldMaxBytes)
}

// manifestFiles lists the manifest filenames to summarize.
var manifestFiles = []string{
	"package.json",
	"Makefile",
	"Cargo.toml",
	"pyproject.toml",
	"go.mod",
}

func gatherManifests(dir string, out map[string]string) {
	for _, name := range manifestFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var label, extracted string
		switch name {
		case "package.json":
			label = "package.json scripts"
			extracted = extractPackageJSONScripts(string(data))
		case "Makefile":
			label = "Makefile targets"
			extracted = extractMakefileTargets(string(data))
		case "Cargo.toml":
			label = name
			extracted = extractCargoInfo(string(data))
		case "pyproject.toml":
			label = name
			extracted = extractPyprojectInfo(string(data))
		case "go.mod":
			label = name
			extracted = extractGoModInfo(string(data))
		}

		if extracted != "" {
			out[label] = extracted
		}
	}
}

// extractPackageJSONScripts extracts the "scripts" object from package.json.
func extractPackageJSONScripts(content string) string {
	var pkg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return ""
	}
	raw, ok := pkg["scripts"]
	if !ok {
		return ""
	}
	var scripts map[string]string
	if err := json.Unmarshal(raw, &scripts); err != nil {
		return ""
	}
	names := make([]string, 0, len(scripts))
	for k := range scripts {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + ": " + scripts[k]
	}
	return truncate(strings.Join(parts, ", "), manifestMaxBytes)
}

// extractMakefileTargets extracts target names from a Makefile.
func extractMakefileTargets(content string) string {
	var targets []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		// Recipe lines start with a tab; skip comments and special targets.
		if len(line) == 0 || line[0] == '\t' || line[0] == '#' || line[0] == '.' {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			continue
		}
		// Skip := assignments
		if idx+1 < len(line) && line[idx+1] == '=' {
			continue
		}
		target := strings.TrimSpace(line[:idx])
		if strings.ContainsAny(target, "$%") {
			continue
		}
		if !seen[target] {
			seen[target] = true
			targets = append(targets, target)
		}
	}
	return truncate(strings.Join(targets, ", "), manifestMaxBytes)
}

type cargoToml struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Bin []struct {
		Name string `toml:"name"`
	} `toml:"bin"`
}

// extractCargoInfo extracts the crate name and [[bin]] targets from Cargo.toml.
func extractCargoInfo(content string) string {
	var cargo cargoToml
	if _, err := toml.Decode(content, &cargo); err != nil {
		return ""
	}
	var parts []string
	if cargo.Package.Name != "" {
		parts = append(parts, fmt.Sprintf(`name = "%s"`, cargo.Package.Name))
	}
	for _, bin := range cargo.Bin {
		if bin.Name != "" {
			parts = append(parts, fmt.Sprintf(`bin = "%s"`, bin.Name))
		}
	}
	return truncate(strings.Join(parts, ", "), manifestMaxBytes)
}

type pyprojectToml struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
}

// extractPyprojectInfo extracts the project name from pyproject.toml.
func extractPyprojectInfo(content string) string {
	var pyproject pyprojectToml
	if _, err := toml.Decode(content, &pyproject); err != nil {
		return ""
	}
	if pyproject.Project.Name == "" {
		return ""
	}
	return fmt.Sprintf(`name = "%s"`, pyproject.Project.Name)
}

// extractGoModInfo extracts the module path and Go version from go.mod.
func extractGoModInfo(content string) string {
	var parts []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			parts = append(parts, line)
		} else if strings.HasPrefix(line, "go ") && !strings.HasPrefix(line, "go.") {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

// lockfileMap maps lockfile names to package manager names, more specific
// lockfiles first.
var lockfileMap = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"package-lock.json", "npm"},
	{"Cargo.lock", "cargo"},
}

func detectPackageManager(dir string) string {
	for _, lf := range lockfileMap {
		if _, err := os.Stat(filepath.Join(dir, lf.file)); err == nil {
			return lf.manager
		}
	}
	return ""
}

// truncate caps s at maxBytes, appending "..." when cut. The cut backs up to
// a rune boundary so the result stays valid UTF-8.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
