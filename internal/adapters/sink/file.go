package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/okian/deathlog/internal/domain/model"
)

const (
	defaultBufSize = 16 * 1024
	maxRotated     = 9
)

// FileOption configures a File sink.
type FileOption func(*File)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) FileOption {
	return func(f *File) { f.maxSize = bytes }
}

// File appends notifications to an NDJSON file. Every Emit is flushed before
// it returns; rotated files are kept as path.1 through path.9.
type File struct {
	mu      sync.Mutex
	w       *bufio.Writer
	f       *os.File
	path    string
	maxSize int64
	written int64
}

// NewFile opens (or creates) path for appending.
func NewFile(path string, opts ...FileOption) (*File, error) {
	s := &File{path: path}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Emit implements Sink.
func (s *File) Emit(_ context.Context, note model.Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("file sink: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return fmt.Errorf("file sink: %s is closed", s.path)
	}
	if s.maxSize > 0 && s.written > 0 && s.written+int64(len(data)) > s.maxSize {
		if err := s.rotate(); err != nil {
			return fmt.Errorf("file sink: rotate: %w", err)
		}
	}

	n, err := s.w.Write(data)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("file sink: write: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("file sink: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	if err := s.w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("file sink: flush: %w", err)
	}
	return f.Close()
}

func (s *File) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file sink: open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("file sink: stat %s: %w", s.path, err)
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, defaultBufSize)
	s.written = info.Size()
	return nil
}

// rotate shifts path.N to path.N+1, moves the current file to path.1 and
// reopens path. The oldest rotation is overwritten. On failure the sink is
// left closed.
func (s *File) rotate() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	f := s.f
	s.f = nil
	if err := f.Close(); err != nil {
		return err
	}
	for i := maxRotated - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", s.path, i), fmt.Sprintf("%s.%d", s.path, i+1))
	}
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		return err
	}
	return s.open()
}
