// Package audit records the outcome of every conversion. Recording is best
// effort: a failing sink is logged and never affects the response.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfconvert/internal/config"
	"pdfconvert/internal/domain"
)

// Entry describes one finished conversion.
type Entry struct {
	RequestID string           `json:"request_id"`
	Engine    string           `json:"engine"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	HTMLBytes int              `json:"html_bytes"`
	PDFBytes  int64            `json:"pdf_bytes"`
	ExitCode  int              `json:"exit_code"`
	Duration  time.Duration    `json:"duration_ns"`
	At        time.Time        `json:"at"`
}

// Status is "ok" for successes and the error kind otherwise.
func (e Entry) Status() string {
	if e.Kind == "" {
		return "ok"
	}
	return string(e.Kind)
}

// Recorder stores entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close() error                         { return nil }

// New builds the recorder selected by cfg.Driver.
func New(cfg config.AuditConfig) (Recorder, error) {
	switch cfg.Driver {
	case "", config.AuditNone:
		return Nop{}, nil
	case config.AuditPostgres:
		return NewPostgres(cfg.Postgres)
	case config.AuditRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Host,
			DB:   cfg.Redis.DB,
		})
		return NewRedis(rdb, cfg.Redis.Key, cfg.Redis.MaxLen), nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}
