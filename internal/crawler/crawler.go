package crawler

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Crawler scans a directory tree for Python source files.
type Crawler struct {
	ignored []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: []string{".git", ".venv", "venv", "__pycache__", "node_modules", "site-packages"},
	}
}

// ScanProject walks the root directory and streams every analyzable
// source file path to the callback. Test files are skipped.
func (c *Crawler) ScanProject(root string, onFile func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		if strings.HasPrefix(d.Name(), "test_") || strings.HasSuffix(d.Name(), "_test.py") {
			return nil
		}

		onFile(path)
		return nil
	})
}
