// Package health serves liveness and readiness probes backed by periodic
// background checks.
//
// A check flips to unhealthy only after failing a number of consecutive runs
// and back to healthy after a number of consecutive successes, so a single
// slow ping does not take the service out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type kind uint8

const (
	liveness kind = iota
	readiness
)

const (
	defaultFailAfter = 3
	defaultPassAfter = 1
)

// Option tunes a single check.
type Option func(*probe)

// WithThresholds sets how many consecutive failures mark a check unhealthy
// and how many consecutive successes mark it healthy again.
func WithThresholds(failAfter, passAfter int) Option {
	return func(p *probe) {
		if failAfter > 0 {
			p.failAfter = failAfter
		}
		if passAfter > 0 {
			p.passAfter = passAfter
		}
	}
}

type probe struct {
	name      string
	kind      kind
	timeout   time.Duration
	check     CheckFunc
	failAfter int
	passAfter int

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	passes  int
}

func (p *probe) exec(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	p.observe(p.check(ctx))
}

func (p *probe) observe(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = err
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.failAfter {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= p.passAfter {
		p.healthy = true
	}
}

// status returns whether the probe is healthy and, if not, why.
func (p *probe) status() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.healthy {
		return true, ""
	}
	if p.lastErr == nil {
		return false, "unhealthy"
	}
	return false, p.lastErr.Error()
}

// Health tracks registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true) is called.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check reported by /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.add(liveness, name, timeout, check, opts)
}

// AddReadinessCheck registers a check reported by /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.add(readiness, name, timeout, check, opts)
}

func (h *Health) add(k kind, name string, timeout time.Duration, check CheckFunc, opts []Option) {
	p := &probe{
		name:      name,
		kind:      k,
		timeout:   timeout,
		check:     check,
		failAfter: defaultFailAfter,
		passAfter: defaultPassAfter,
		healthy:   true,
	}
	for _, o := range opts {
		o(p)
	}

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// Start runs every registered check immediately and then every interval
// until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	for _, p := range probes {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			loop(ctx, p, interval)
		}()
	}
}

func loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.exec(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the background checks and waits for them to return.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// SetReady toggles the manual readiness flag.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(readiness)) == 0
}

func (h *Health) failures(k kind) map[string]string {
	h.mu.RLock()
	probes := append([]*probe(nil), h.probes...)
	h.mu.RUnlock()

	out := make(map[string]string)
	for _, p := range probes {
		if p.kind != k {
			continue
		}
		if ok, reason := p.status(); !ok {
			out[p.name] = reason
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// writeStatus responds 200 {"status":"ok"} or 503 with the failing checks.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		e.Str("unhealthy")
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	code := http.StatusOK
	if len(failures) > 0 {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
