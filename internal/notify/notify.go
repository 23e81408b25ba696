// Package notify dispatches user-facing notifications raised by plugins.
//
// A Center stamps each notification with an id, keeps a bounded recent
// history and fans it out to sinks. A failing or panicking sink never
// affects the caller or the other sinks.
package notify

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/plugin"
)

// Default history limits.
const (
	DefaultHistorySize = 100
	DefaultHistoryTTL  = time.Hour
)

// Notification is one delivered notification.
type Notification struct {
	ID      string
	Title   string
	Message string
	Type    plugin.NotificationType
	Time    time.Time
}

// Sink receives notifications.
type Sink interface {
	Deliver(n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(n Notification) error {
	return f(n)
}

// Center fans notifications out to sinks.
type Center struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *logging.Logger

	history *lru.LRU[string, Notification]
	now     func() time.Time
}

// Option configures a Center.
type Option func(*centerConfig)

type centerConfig struct {
	size   int
	ttl    time.Duration
	sinks  []Sink
	logger *logging.Logger
}

// WithHistory sets the history size and entry lifetime. A zero ttl keeps
// entries until they are evicted by size.
func WithHistory(size int, ttl time.Duration) Option {
	return func(c *centerConfig) {
		c.size, c.ttl = size, ttl
	}
}

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(c *centerConfig) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithLogger sets the logger used for sink failures.
func WithLogger(logger *logging.Logger) Option {
	return func(c *centerConfig) {
		c.logger = logger
	}
}

// NewCenter creates a notification center.
func NewCenter(opts ...Option) *Center {
	cfg := centerConfig{size: DefaultHistorySize, ttl: DefaultHistoryTTL, logger: logging.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.size <= 0 {
		cfg.size = DefaultHistorySize
	}
	return &Center{
		sinks:   cfg.sinks,
		logger:  cfg.logger.WithComponent("notify"),
		history: lru.NewLRU[string, Notification](cfg.size, nil, cfg.ttl),
		now:     time.Now,
	}
}

// AddSink registers another sink.
func (c *Center) AddSink(s Sink) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Show records and delivers a notification.
func (c *Center) Show(title, message string, typ plugin.NotificationType) Notification {
	n := Notification{
		ID:      uuid.NewString(),
		Title:   title,
		Message: message,
		Type:    typ,
		Time:    c.now(),
	}
	c.history.Add(n.ID, n)

	c.mu.RLock()
	sinks := slices.Clone(c.sinks)
	c.mu.RUnlock()

	for _, s := range sinks {
		if err := deliver(s, n); err != nil {
			c.logger.WithError(err).Warn("notification sink failed")
		}
	}
	return n
}

func deliver(s Sink, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.Deliver(n)
}

// Get returns a notification from the history.
func (c *Center) Get(id string) (Notification, bool) {
	return c.history.Peek(id)
}

// Recent returns up to limit notifications, newest first. A limit of
// zero or less returns the whole history.
func (c *Center) Recent(limit int) []Notification {
	values := c.history.Values()
	slices.Reverse(values)
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	return values
}

// Len returns the number of notifications in the history.
func (c *Center) Len() int {
	return c.history.Len()
}
