package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// SinkConfig selects the destination of a CSV log.
type SinkConfig struct {
	Path string
	// Append keeps existing content instead of truncating. The header is written
	// only when the destination is empty.
	Append bool
}

// csvSink is an open CSV destination. Not thread-safe; owners guard it.
type csvSink struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// openCSVSink opens cfg.Path, writes header if needed and flushes it.
func openCSVSink(cfg SinkConfig, header []string) (*csvSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("empty sink path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", cfg.Path, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if cfg.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	file, err := os.OpenFile(cfg.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Path, err)
	}

	writeHeader := true
	if cfg.Append {
		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("stat %s: %w", cfg.Path, err)
		}
		writeHeader = info.Size() == 0
	}

	s := &csvSink{path: cfg.Path, file: file, writer: csv.NewWriter(file)}
	if writeHeader {
		if err := s.write(header); err != nil {
			_ = file.Close()
			return nil, err
		}
		if err := s.flush(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *csvSink) write(fields []string) error {
	if err := s.writer.Write(fields); err != nil {
		return fmt.Errorf("writing row to %s: %w", s.path, err)
	}
	return nil
}

func (s *csvSink) flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", s.path, err)
	}
	return nil
}

// close flushes pending rows and releases the file. The file is closed even
// when the flush fails.
func (s *csvSink) close() error {
	flushErr := s.flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", s.path, closeErr)
	}
	return nil
}
