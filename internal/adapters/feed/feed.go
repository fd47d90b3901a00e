// Package feed tails an NDJSON file of host messages and submits each line.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/deathlog/internal/domain/types"
	"github.com/okian/deathlog/pkg/logger"
	"github.com/okian/deathlog/pkg/metrics"
)

const (
	defaultPollInterval = time.Second
	maxLineBytes        = 1 << 20
)

// Submitter accepts decoded inbound messages.
type Submitter interface {
	Submit(ctx context.Context, in types.Inbound) (duplicate bool, err error)
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithFromStart replays the existing content instead of starting at the end.
func WithFromStart(fromStart bool) Option {
	return func(t *Tailer) { t.fromStart = fromStart }
}

// WithPollInterval sets how often the file is checked when no fsnotify event
// arrives. Some filesystems never report writes.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.poll = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tailer) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tailer follows one file across appends, truncation and rotation.
type Tailer struct {
	path      string
	submit    Submitter
	fromStart bool
	poll      time.Duration
	logger    logger.Logger

	file   *os.File
	offset int64
}

// New creates a Tailer for path.
func New(path string, s Submitter, opts ...Option) *Tailer {
	t := &Tailer{
		path:   path,
		submit: s,
		poll:   defaultPollInterval,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run tails the file until ctx is done. The file may not exist yet.
func (t *Tailer) Run(ctx context.Context) error {
	absPath, err := filepath.Abs(t.path)
	if err != nil {
		return fmt.Errorf("resolve feed path: %w", err)
	}
	t.path = filepath.Clean(absPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	defer t.closeFile()

	if err := t.open(!t.fromStart); err != nil {
		return err
	}
	t.logger.Info(ctx, "tailing feed", logger.String("path", t.path), logger.Int64("offset", t.offset))
	t.read(ctx)

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != t.path {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// drain what the old file still holds, then wait for the new one
				t.drain(ctx)
				t.closeFile()
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				t.closeFile()
				if err := t.open(false); err != nil {
					t.logger.Warn(ctx, "failed to reopen feed", logger.Error(err))
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.read(ctx)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn(ctx, "feed watcher error", logger.Error(err))
		case <-ticker.C:
			if t.file == nil {
				if err := t.open(false); err != nil {
					t.logger.Warn(ctx, "failed to open feed", logger.Error(err))
					continue
				}
			}
			t.read(ctx)
		}
	}
}

// open opens the file if it exists. atEnd skips existing content.
func (t *Tailer) open(atEnd bool) error {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	t.file = f
	t.offset = 0
	if atEnd {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			_ = f.Close()
			t.file = nil
			return fmt.Errorf("seek feed: %w", err)
		}
		t.offset = off
	}
	return nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
}

// read submits every complete line after offset. A trailing partial line is
// left for the next read. When a line is refused for a reason other than
// its content, read stops before it and reports pending so the line is
// submitted again on the next read.
func (t *Tailer) read(ctx context.Context) (pending bool) {
	if t.file == nil {
		return false
	}
	info, err := t.file.Stat()
	if err != nil {
		return false
	}
	if info.Size() < t.offset {
		t.logger.Info(ctx, "feed truncated", logger.String("path", t.path))
		t.offset = 0
	}
	if info.Size() == t.offset {
		return false
	}
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return false
	}

	r := bufio.NewReaderSize(t.file, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			// incomplete line; reread it once the writer finishes
			return false
		}
		start := t.offset
		t.offset += int64(len(line))
		if len(line) > maxLineBytes {
			metrics.RecordEventDropped("oversized")
			continue
		}
		if !t.handle(ctx, line) {
			t.offset = start
			return true
		}
	}
}

// handle submits one line. It returns false when the line must be retried.
func (t *Tailer) handle(ctx context.Context, line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return true
	}
	var in types.Inbound
	if err := json.Unmarshal(line, &in); err != nil {
		metrics.RecordEventDropped("malformed")
		t.logger.Warn(ctx, "skipping malformed feed line", logger.Error(err))
		return true
	}
	_, err := t.submit.Submit(ctx, in)
	switch {
	case err == nil:
		return true
	case errors.Is(err, types.ErrInvalidMessage):
		t.logger.Warn(ctx, "skipping invalid feed message",
			logger.String("type", in.Type),
			logger.String("event_id", in.EventID),
			logger.Error(err),
		)
		return true
	}
	t.logger.Debug(ctx, "feed message refused; will retry",
		logger.String("type", in.Type),
		logger.String("event_id", in.EventID),
		logger.Int64("offset", t.offset),
		logger.Error(err),
	)
	return false
}

// drain reads the current file until every complete line is accepted or
// ctx is done.
func (t *Tailer) drain(ctx context.Context) {
	for t.read(ctx) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.poll):
		}
	}
}
