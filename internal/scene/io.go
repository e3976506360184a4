package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DecodeProject reads and validates a project document.
func DecodeProject(r io.Reader) (*Project, error) {
	var p Project
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if p.Version == "" {
		p.Version = SchemaVersion
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeProject writes the project as indented JSON.
func EncodeProject(w io.Writer, p *Project) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// ReadProject loads a project from a JSON file.
func ReadProject(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := DecodeProject(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteProject saves a project to a JSON file.
func WriteProject(path string, p *Project) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeProject(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FindLatestProject returns the most recently modified *.json file in dir.
func FindLatestProject(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, entry.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no project files found in %s", dir)
	}
	return latestFile, nil
}
