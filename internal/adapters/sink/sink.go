// Package sink delivers recorded deaths to their consumers.
package sink

import (
	"context"
	"errors"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/pkg/logger"
	"github.com/okian/deathlog/pkg/metrics"
)

// Sink receives one notification per recorded death.
type Sink interface {
	Emit(ctx context.Context, n model.Notification) error
	Close() error
}

// Multi fans out notifications to every wrapped sink. A failing sink does
// not stop delivery to the rest.
type Multi struct {
	sinks []named
}

type named struct {
	name string
	Sink
}

// NewMulti creates an empty Multi.
func NewMulti() *Multi {
	return &Multi{}
}

// Add registers s under name, used for error metrics.
func (m *Multi) Add(name string, s Sink) *Multi {
	m.sinks = append(m.sinks, named{name: name, Sink: s})
	return m
}

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Emit delivers n to every sink and joins their errors.
func (m *Multi) Emit(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, n); err != nil {
			metrics.RecordSinkError(s.name)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes one structured line per death.
type Log struct {
	logger logger.Logger
}

// NewLog creates a Log sink.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Nop()
	}
	return &Log{logger: l}
}

// Emit implements Sink.
func (s *Log) Emit(ctx context.Context, n model.Notification) error {
	rec := n.Record
	fields := []logger.Field{
		logger.String("id", rec.ID.String()),
		logger.String("killer", rec.Killer.SourceName),
		logger.String("detail", rec.Killer.Detail),
		logger.String("zone", rec.Zone()),
	}
	if rec.Identity != nil {
		fields = append(fields, logger.String("player", rec.Identity.Key()))
	}
	if n.ScreenshotAt != nil {
		fields = append(fields, logger.Any("screenshot_at", *n.ScreenshotAt))
	}
	s.logger.Info(ctx, "you died", fields...)
	return nil
}

// Close implements Sink.
func (s *Log) Close() error { return nil }
