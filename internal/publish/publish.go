package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"clarity-canvas/internal/store"
)

type WriteOptions struct {
	IncludeDone bool
	Overwrite   bool
	Title       string
}

type WriteResult struct {
	Written []string `json:"written"`
}

func WriteGroup(db *store.DB, groupID string, toDir string, opt WriteOptions) (WriteResult, error) {
	if db == nil {
		return WriteResult{}, errors.New("missing db")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return WriteResult{}, errors.New("missing groupID")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	md, err := RenderGroupMarkdown(db, groupID, RenderOptions{IncludeDone: opt.IncludeDone})
	if err != nil {
		return WriteResult{}, err
	}

	outDir := filepath.Join(toDir, "groups")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	outPath := filepath.Join(outDir, groupID+".md")
	if err := writeFile(outPath, []byte(md), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Written: []string{outPath}}, nil
}

// WriteCanvas writes index.md plus one page per group under groups/.
func WriteCanvas(db *store.DB, toDir string, opt WriteOptions) (WriteResult, error) {
	if db == nil {
		return WriteResult{}, errors.New("missing db")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	if err := os.MkdirAll(filepath.Join(toDir, "groups"), 0o755); err != nil {
		return WriteResult{}, err
	}

	indexMD, err := RenderCanvasIndexMarkdown(db, opt.Title, RenderOptions{IncludeDone: opt.IncludeDone})
	if err != nil {
		return WriteResult{}, err
	}
	indexPath := filepath.Join(toDir, "index.md")
	if err := writeFile(indexPath, []byte(indexMD), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on the first error.
	written := []string{indexPath}
	for _, g := range db.Groups() {
		res, err := WriteGroup(db, g.ID, toDir, opt)
		if err != nil {
			return WriteResult{}, err
		}
		written = append(written, res.Written...)
	}

	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
