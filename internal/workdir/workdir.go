package workdir

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrPathEscape = errors.New("path escapes the workdir root")
	ErrNotFound   = errors.New("no such directory")
)

// Entry is one directory listing row for the dashboard's working
// directory picker.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"isDir"`
	ModTime time.Time `json:"modTime"`
}

// Guard scopes session working directories under a single root. Session
// creation resolves the requested directory through it, so a dashboard
// request can never launch a process outside the configured tree.
type Guard struct {
	root string
}

// NewGuard creates a guard rooted at root. Symlinks in the root itself
// are resolved up front so later containment checks compare real paths.
func NewGuard(root string) *Guard {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolved, _ = filepath.Abs(root)
	}
	return &Guard{root: resolved}
}

// Root returns the guard's root path.
func (g *Guard) Root() string {
	return g.root
}

// Resolve maps a dashboard-supplied path to an absolute directory under
// the root. The empty path is the root itself. Paths containing "..",
// or resolving (directly or through symlinks) outside the root, return
// ErrPathEscape. The directory must exist.
func (g *Guard) Resolve(path string) (string, error) {
	if path == "" || path == "/" {
		return g.root, nil
	}
	if strings.Contains(path, "..") {
		return "", ErrPathEscape
	}

	cleaned := strings.TrimPrefix(filepath.Clean(path), "/")
	full := filepath.Join(g.root, cleaned)

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !within(resolved, g.root) {
		return "", ErrPathEscape
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", ErrNotFound
	}
	return resolved, nil
}

// List returns the entries under a directory, for the picker. Hidden
// entries are skipped.
func (g *Guard) List(path string) ([]Entry, error) {
	resolved, err := g.Resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(g.root, filepath.Join(resolved, e.Name()))
		out = append(out, Entry{
			Name:    e.Name(),
			Path:    "/" + rel,
			IsDir:   e.IsDir(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

// within reports whether path equals root or sits inside it. A plain
// prefix check would wrongly match /work-evil against /work.
func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
