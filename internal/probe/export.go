package probe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ExportResult describes a written export file.
type ExportResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Count    int    `json:"count"`
}

// ExportFilename returns the export file name for the given day,
// e.g. proxies18.10.26.tsv.
func ExportFilename(now time.Time) string {
	return "proxies" + now.Format("02.01.06") + ".tsv"
}

// WriteUnique writes the unique relays in original notation, one per line,
// each newline-terminated. Returns the number of lines written.
func (s *Sweeper) WriteUnique(w io.Writer) (int, error) {
	lines := s.Unique()
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Export writes the unique relays of the last sweep into dir, replacing an
// export of the same day. The directory is created if missing.
func (s *Sweeper) Export(dir string, now time.Time) (*ExportResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening export dir: %w", err)
	}
	defer root.Close()

	filename := ExportFilename(now)
	f, err := root.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}
	count, err := s.WriteUnique(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("writing export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing export file: %w", err)
	}

	s.logger.Info("Exported unique proxies", "file", filename, "count", count)
	return &ExportResult{
		Filename: filename,
		Path:     filepath.Join(dir, filename),
		Count:    count,
	}, nil
}
