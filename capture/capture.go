// Package capture observes HTTP exchanges during a test run and feeds them
// to the document engine.
//
// Wrap the router under test with a Capturer's Middleware, bind request
// types with Handle, and commit the document from TestMain with Run:
//
//	func TestMain(m *testing.M) {
//		os.Exit(capture.Run(m, capturer))
//	}
package capture

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/vitalvas/autodoc/synth"
)

// SkipHeader opts a single request out of capture when set to a true
// value. The header is removed before the handler runs.
const SkipHeader = "X-Autodoc-Skip"

// DefaultMaxBodySize bounds the request and response bodies kept per
// exchange.
const DefaultMaxBodySize int64 = 1 << 20

// Engine is the document engine fed by the middleware.
type Engine interface {
	BeginOrResume() error
	RecordExchange(ex *synth.Exchange) error
	Commit() error
}

// Config configures a Capturer.
type Config struct {
	// Enabled turns capture on. A disabled Capturer passes requests
	// through untouched.
	Enabled bool

	// Decide is an optional per-exchange decision evaluated before the
	// handler runs. Returning false skips the exchange.
	Decide func(r *http.Request) bool

	// PatternFunc returns the route pattern a request matched. It runs
	// after the handler. Defaults to the net/http.ServeMux pattern.
	PatternFunc func(r *http.Request) string

	// MaxBodySize bounds captured bodies. Defaults to DefaultMaxBodySize.
	MaxBodySize int64

	// Metrics is optional.
	Metrics *Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Capturer turns completed exchanges into engine captures. Captures that
// fail are logged and collected; they never change the response sent to
// the client.
type Capturer struct {
	engine  Engine
	cfg     Config
	logger  *slog.Logger
	pattern func(r *http.Request) string

	mu   sync.Mutex
	errs []error
}

// New returns a Capturer feeding engine.
func New(engine Engine, cfg Config) *Capturer {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pattern := cfg.PatternFunc
	if pattern == nil {
		pattern = func(r *http.Request) string { return r.Pattern }
	}

	return &Capturer{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		pattern: pattern,
	}
}

// Middleware captures every exchange served by next.
func (c *Capturer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if skip := r.Header.Get(SkipHeader); skip != "" {
			r.Header.Del(SkipHeader)
			if cast.ToBool(skip) {
				c.cfg.Metrics.recordSkip("header")
				next.ServeHTTP(w, r)
				return
			}
		}

		if c.cfg.Decide != nil && !c.cfg.Decide(r) {
			c.cfg.Metrics.recordSkip("decision")
			next.ServeHTTP(w, r)
			return
		}

		payload, err := readPayload(r, c.cfg.MaxBodySize)
		if err != nil {
			c.logger.Warn("request payload not captured", "method", r.Method, "url", r.URL.Path, "error", err)
			payload = nil
		}

		r, state := withExchange(r)
		rec := newResponseRecorder(w, c.cfg.MaxBodySize)

		next.ServeHTTP(rec, r)

		if state.skipped() {
			c.cfg.Metrics.recordSkip("handler")
			return
		}

		pattern := c.pattern(r)
		if pattern == "" {
			c.cfg.Metrics.recordSkip("unmatched")
			return
		}

		start := time.Now()
		err = c.engine.RecordExchange(&synth.Exchange{
			Method:              r.Method,
			Pattern:             pattern,
			BoundTypes:          state.boundTypes(),
			RequestContentType:  r.Header.Get("Content-Type"),
			Payload:             payload,
			Status:              rec.status,
			ResponseContentType: rec.Header().Get("Content-Type"),
			ResponseBody:        rec.body.Bytes(),
		})
		if err != nil {
			c.fail(r, err)
			return
		}

		c.cfg.Metrics.recordCapture(r.Method, strconv.Itoa(rec.status), time.Since(start))
	})
}

func (c *Capturer) fail(r *http.Request, err error) {
	c.cfg.Metrics.recordFailure(err)
	c.logger.Error("capture failed", "method", r.Method, "url", r.URL.Path, "error", err)

	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// Err returns the errors of every failed capture joined, or nil.
func (c *Capturer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errors.Join(c.errs...)
}

// Commit writes the accumulated document as the production document.
func (c *Capturer) Commit() error {
	return c.engine.Commit()
}

// Runner runs a test suite and returns its exit code. *testing.M
// implements it.
type Runner interface {
	Run() int
}

// Run begins or resumes the document, runs the suite and commits the
// document only when the suite passed and every capture succeeded. The
// staged document is kept otherwise. It returns the exit code for os.Exit.
func Run(m Runner, c *Capturer) int {
	if !c.cfg.Enabled {
		return m.Run()
	}

	if err := c.engine.BeginOrResume(); err != nil {
		c.logger.Error("cannot begin document", "error", err)
		return 1
	}

	code := m.Run()
	if code != 0 {
		c.logger.Info("test run failed, document not committed", "code", code)
		return code
	}

	if err := c.Err(); err != nil {
		c.logger.Error("captures failed, document not committed", "error", err)
		return 1
	}

	if err := c.Commit(); err != nil {
		c.logger.Error("cannot commit document", "error", err)
		return 1
	}
	return 0
}
