// Package cache records directories the hosting environment may persist
// between runs. The hints carry no executable semantics here.
package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Promptonauts/convey/pkg/models"
)

// Collect resolves each cache directory against the working directory and
// records whether it exists and how large it is. Paths starting with "~/"
// resolve against the user's home directory, matching the hosted-CI
// convention the manifests are written for.
func Collect(workdir string, dirs []string) []models.CacheHint {
	hints := make([]models.CacheHint, 0, len(dirs))
	for _, dir := range dirs {
		hints = append(hints, collectOne(workdir, dir))
	}
	return hints
}

func collectOne(workdir, dir string) models.CacheHint {
	hint := models.CacheHint{Path: dir}

	resolved := dir
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			resolved = filepath.Join(home, dir[2:])
		}
	} else if !filepath.IsAbs(dir) {
		resolved = filepath.Join(workdir, dir)
	}
	hint.Resolved = resolved

	info, err := os.Stat(resolved)
	if err != nil {
		return hint
	}
	hint.Exists = true
	if !info.IsDir() {
		hint.Bytes = info.Size()
		return hint
	}
	hint.Bytes = dirSize(resolved)
	return hint
}

func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries just don't count toward the size
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
