// Package files locates downloaded export files under the raw data
// directory.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileInfo describes a discovered export file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds export files relative to a base directory.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a file discovery instance rooted at basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// Find returns all files under dir matching the glob pattern, sorted by
// modification time (oldest first). Relative dirs resolve against the
// base path.
func (d *Discovery) Find(dir, pattern string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	matches, err := filepath.Glob(filepath.Join(fullPath, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s in %s: %w", pattern, fullPath, err)
	}

	var out []FileInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, FileInfo{
			Path:    path,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModTime.Before(out[j].ModTime)
	})
	return out, nil
}

// FindLatest returns the most recently modified file matching pattern,
// or an error when nothing matches.
func (d *Discovery) FindLatest(dir, pattern string) (FileInfo, error) {
	files, err := d.Find(dir, pattern)
	if err != nil {
		return FileInfo{}, err
	}
	if len(files) == 0 {
		return FileInfo{}, fmt.Errorf("no files matching %s in %s", pattern, dir)
	}
	return files[len(files)-1], nil
}
