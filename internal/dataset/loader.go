// Package dataset loads call transcripts from disk for batch analysis.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Call is one transcript read from disk. CallID is the file name without its
// extension.
type Call struct {
	CallID     string
	SourceFile string
	Transcript string
}

// LoadCalls reads every .txt transcript under inputDir, recursively, sorted
// by path. filterPrefix keeps only files whose base name starts with it;
// limit > 0 caps the number of calls returned.
func LoadCalls(inputDir, filterPrefix string, limit int) ([]Call, error) {
	if strings.TrimSpace(inputDir) == "" {
		return nil, errors.New("input directory is required")
	}
	if limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	paths, err := listTranscriptFiles(inputDir)
	if err != nil {
		return nil, err
	}

	calls := make([]Call, 0, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		if filterPrefix != "" && !strings.HasPrefix(base, filterPrefix) {
			continue
		}

		call, err := LoadCallFile(path)
		if err != nil {
			return nil, err
		}

		calls = append(calls, call)
		if limit > 0 && len(calls) >= limit {
			break
		}
	}
	return calls, nil
}

// LoadCallFile reads one transcript file.
func LoadCallFile(path string) (Call, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Call{}, fmt.Errorf("read %q: %w", path, err)
	}

	transcript := strings.TrimSpace(string(raw))
	if transcript == "" {
		return Call{}, fmt.Errorf("parse %q: empty transcript", path)
	}

	base := filepath.Base(path)
	return Call{
		CallID:     strings.TrimSuffix(base, filepath.Ext(base)),
		SourceFile: filepath.ToSlash(path),
		Transcript: transcript,
	}, nil
}

func listTranscriptFiles(root string) ([]string, error) {
	paths := make([]string, 0, 256)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".txt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}
