package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the application's working directories relative to a base
// directory (the current working directory unless overridden).
type Paths struct {
	BaseDir    string
	DataDir    string
	RawDir     string
	ExportsDir string
	LogsDir    string
}

// NewPaths builds a Paths from configuration, resolving relative
// directories against baseDir. An empty baseDir means the current
// working directory.
func NewPaths(baseDir string, cfg PathsConfig) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		baseDir = wd
	}
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(baseDir, dir)
	}
	return &Paths{
		BaseDir:    baseDir,
		DataDir:    resolve(cfg.DataDir),
		RawDir:     resolve(cfg.RawDir),
		ExportsDir: resolve(cfg.ExportsDir),
		LogsDir:    resolve(cfg.LogsDir),
	}, nil
}

// EnsureDirectories creates every managed directory that does not exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.RawDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RawPath returns a path under the raw downloads directory.
func (p *Paths) RawPath(name string) string {
	return filepath.Join(p.RawDir, name)
}

// ExportPath returns a path under the exports directory.
func (p *Paths) ExportPath(name string) string {
	return filepath.Join(p.ExportsDir, name)
}

// LogPath returns a path under the logs directory.
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogsDir, name)
}
