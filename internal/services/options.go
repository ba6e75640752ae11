package services

import (
	"strconv"
	"time"

	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/metrics"
)

type config struct {
	log      *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	location *time.Location
}

// Option configures a service.
type Option func(*config)

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option { return func(c *config) { c.log = l } }

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(c *config) { c.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

// WithLocation sets the time zone whose calendar year scopes ticket numbers.
func WithLocation(loc *time.Location) Option { return func(c *config) { c.location = loc } }

func newConfig(opts []Option) config {
	c := config{
		log:      logging.Discard(),
		now:      time.Now,
		location: time.Local,
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Lock keys shared by every unit that touches the same resources.
const chainKey = "chain"

func productKey(id uint) string { return "product:" + strconv.FormatUint(uint64(id), 10) }
func ticketKey(year int) string { return "ticket:" + strconv.Itoa(year) }
func saleKey(id uint) string    { return "sale:" + strconv.FormatUint(uint64(id), 10) }
