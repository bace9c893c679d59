package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces bursts of file events into one reload.
const reloadDelay = 500 * time.Millisecond

// parsers maps a policy file extension to its parser.
var parsers = map[string]func(path string, data []byte) (*Policy, error){
	".rego": parseRego,
	".json": parseJSON,
}

// Loader reads plan policies from .rego and .json files and caches them by
// path until the file changes.
type Loader struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Policy

	watcher *fsnotify.Watcher
}

// NewLoader creates a loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]*Policy),
	}
}

func isPolicyFile(path string) bool {
	_, ok := parsers[filepath.Ext(path)]
	return ok
}

// LoadFromPaths loads policies from files and directories. A named file must
// load; inside a directory, walked recursively, a policy file that fails to
// load is skipped with a warning.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var loaded []Policy

	for _, root := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("policy path %s: %w", root, err)
		}
		if !info.IsDir() {
			p, err := l.loadFromFile(root)
			if err != nil {
				return nil, fmt.Errorf("policy path %s: %w", root, err)
			}
			loaded = append(loaded, *p)
			continue
		}

		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			switch {
			case err != nil:
				return err
			case d.IsDir(), !isPolicyFile(path):
				return nil
			}
			p, err := l.loadFromFile(path)
			if err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
				return nil
			}
			loaded = append(loaded, *p)
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("policy directory %s: %w", root, walkErr)
		}
	}

	l.logger.Debug().Int("policies", len(loaded)).Strs("paths", paths).Msg("Policy files read")
	return loaded, nil
}

// loadFromFile returns the cached policy of path or parses the file.
func (l *Loader) loadFromFile(path string) (*Policy, error) {
	l.mu.RLock()
	p, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	parse, ok := parsers[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("%s is neither a .rego nor a .json policy", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if p, err = parse(path, data); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[path] = p
	l.mu.Unlock()
	return p, nil
}

// parseRego wraps a Rego module into a warning-level policy named after the
// file and described by its leading comment.
func parseRego(path string, data []byte) (*Policy, error) {
	src := string(data)
	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: extractDescription(src),
		Rego:        src,
		Severity:    SeverityWarning,
		Enabled:     true,
		Source:      path,
	}, nil
}

// parseJSON decodes a Policy. Name defaults to the file name and severity to
// warning.
func parseJSON(path string, data []byte) (*Policy, error) {
	p := &Policy{Enabled: true}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}
	p.Source = path
	return p, nil
}

// extractDescription joins the first block of # comment lines of a Rego
// module. Blank lines before the block are skipped; any other line ends it.
func extractDescription(content string) string {
	var words []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		text, isComment := strings.CutPrefix(line, "#")
		if !isComment {
			if line != "" && len(words) > 0 {
				break
			}
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			words = append(words, text)
		}
	}
	return strings.Join(words, " ")
}

// Watch reloads the policies under paths after a policy file is written or
// created and passes them to reloadFn. It returns once the watch is set up;
// watching stops when ctx is done.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create policy watcher: %w", err)
	}
	l.watcher = w

	for _, path := range paths {
		if err := l.addWatch(path); err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch policy path")
		}
	}
	go l.watchLoop(ctx, paths, reloadFn)

	l.logger.Info().Strs("paths", paths).Msg("Watching policies")
	return nil
}

// addWatch watches a file, or a directory tree.
func (l *Loader) addWatch(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return l.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return l.watcher.Add(path)
	})
}

func (l *Loader) watchLoop(ctx context.Context, paths []string, reloadFn func([]Policy) error) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
		_ = l.watcher.Close()
	}()

	reload := func() {
		policies, err := l.LoadFromPaths(ctx, paths)
		if err == nil {
			err = reloadFn(policies)
		}
		if err != nil {
			l.logger.Error().Err(err).Msg("Failed to reload policies")
			return
		}
		l.logger.Info().Int("policies", len(policies)).Msg("Policies reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) || !isPolicyFile(ev.Name) {
				continue
			}
			l.logger.Debug().Str("file", ev.Name).Stringer("op", ev.Op).Msg("Policy file changed")

			l.mu.Lock()
			delete(l.cache, ev.Name)
			l.mu.Unlock()

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDelay, reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

// ClearCache forgets every parsed policy file.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]*Policy)
	l.mu.Unlock()
}
