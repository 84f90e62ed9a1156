package rbac

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/parley/pkg/observability"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a role catalog
type catalogFile struct {
	Roles []RoleDefinition `yaml:"roles"`
}

// ParseCatalog decodes and validates a YAML role catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse role catalog: %w", err)
	}
	c, err := NewCatalog(f.Roles)
	if err != nil {
		return nil, fmt.Errorf("invalid role catalog: %w", err)
	}
	return c, nil
}

// LoadFile reads and validates the YAML role catalog at path
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role catalog: %w", err)
	}
	return ParseCatalog(data)
}

// MarshalCatalog encodes c in the layout LoadFile reads
func MarshalCatalog(c *Catalog) ([]byte, error) {
	return yaml.Marshal(catalogFile{Roles: c.Roles()})
}

// FileSource keeps a Resolver in sync with a YAML catalog on disk.
// A file that fails to parse or validate leaves the previous catalog in place.
type FileSource struct {
	path     string
	resolver *Resolver
	logger   *observability.Logger
	debounce time.Duration

	// OnReload, when set, is called after every reload attempt
	OnReload func(err error)
}

// NewFileSource creates a file source for path feeding resolver
func NewFileSource(path string, resolver *Resolver, logger *observability.Logger) *FileSource {
	return &FileSource{
		path:     path,
		resolver: resolver,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}
}

// Load reads the file once and installs it
func (s *FileSource) Load() error {
	c, err := LoadFile(s.path)
	if err == nil {
		s.resolver.Replace(c)
	}
	if s.OnReload != nil {
		s.OnReload(err)
	}
	return err
}

// Watch reloads the catalog whenever the file changes, until ctx is done.
// The parent directory is watched so that editors replacing the file
// atomically are picked up.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve role catalog path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		defer observability.RecoverPanic(s.logger, "role catalog reload")
		if err := s.Load(); err != nil {
			s.logger.WithError(err).WithField("path", s.path).Warn("Role catalog reload rejected, keeping previous catalog")
			return
		}
		s.logger.WithField("path", s.path).Info("Role catalog reloaded")
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, reload)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Warn("Role catalog watcher error")
		}
	}
}
