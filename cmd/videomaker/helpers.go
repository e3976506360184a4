package main

import (
	"os"
	"path/filepath"
	"time"
)

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
