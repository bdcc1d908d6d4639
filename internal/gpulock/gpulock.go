// Package gpulock implements the GPU Serializer (spec.md §4.E): process-wide
// mutual exclusion over GPU-using code paths, with a VRAM-floor check before
// acquisition and a post-session settle poll before the next acquisition.
//
// Grounded on the teacher's bounded-parallelism idiom in analyzer.go's
// AnalyzeBatch (a buffered-channel semaphore gating concurrent goroutines):
// the same shape, adapted from bounded *parallel* access to bounded *serial*
// access (capacity 1), since two GPU model sessions must never overlap.
package gpulock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cinecut/internal/cinerr"
)

// Session identifies which model is about to claim the GPU, each with its
// own VRAM floor (spec.md §4.E).
type Session string

const (
	SessionVision Session = "vision"
	SessionText   Session = "text"
)

// floorMiB returns the minimum free VRAM, in MiB, required before
// acquisition is attempted for session.
func floorMiB(s Session) int {
	switch s {
	case SessionVision:
		return 6144
	case SessionText:
		return 4096
	default:
		return 4096
	}
}

const (
	settlePollInterval = 250 * time.Millisecond
	settlePollTimeout  = 15 * time.Second
	settleMinFloor     = 3 * time.Second
)

// VRAMQuery reports current free VRAM in MiB. cmd/cinecut supplies one
// that queries nvidia-smi; tests supply a fake.
type VRAMQuery func(ctx context.Context) (freeMiB int, err error)

// Serializer is the process-wide singleton GPU mutex plus VRAM polling.
type Serializer struct {
	mu    sync.Mutex
	query VRAMQuery

	settledMu   sync.Mutex
	lastRelease time.Time
	hasReleased bool
}

// New builds a Serializer backed by query for free-VRAM polling.
func New(query VRAMQuery) *Serializer {
	return &Serializer{query: query}
}

// Handle represents an acquired GPU session; Release must be called exactly
// once, normally via defer immediately after a successful Acquire.
type Handle struct {
	s *Serializer
}

// Acquire blocks until the GPU is free for exclusive use. It first waits out
// any settle period left over from the previous session (spec.md §4.E:
// "polls free-VRAM until it exceeds a threshold... before the next
// acquisition"), giving the driver a chance to reclaim memory, and only then
// checks the VRAM floor for session. If free VRAM is still below the floor
// after settling, it fails fast with cinerr.KindVram and never takes the
// lock.
func (s *Serializer) Acquire(ctx context.Context, session Session) (*Handle, error) {
	if err := s.waitSettled(ctx, session); err != nil {
		return nil, err
	}

	free, err := s.query(ctx)
	if err != nil {
		return nil, cinerr.Vram(fmt.Sprintf("query free VRAM for %s session", session), err)
	}
	if free < floorMiB(session) {
		return nil, cinerr.Vram(fmt.Sprintf("free VRAM %d MiB below floor %d MiB for %s session", free, floorMiB(session), session), nil)
	}

	s.mu.Lock()
	return &Handle{s: s}, nil
}

// waitSettled enforces the minimum 3s post-release floor and then polls
// free VRAM until it clears session's own floor or 15s elapses, whichever
// comes first (spec.md §4.E). A poll timeout is NOT an error: it simply
// stops waiting and lets Acquire's own VRAM-floor check fail if VRAM truly
// never recovered.
func (s *Serializer) waitSettled(ctx context.Context, session Session) error {
	s.settledMu.Lock()
	last := s.lastRelease
	released := s.hasReleased
	s.settledMu.Unlock()
	if !released {
		return nil
	}

	if since := time.Since(last); since < settleMinFloor {
		select {
		case <-time.After(settleMinFloor - since):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	deadline := time.Now().Add(settlePollTimeout)
	for time.Now().Before(deadline) {
		free, err := s.query(ctx)
		if err == nil && free >= floorMiB(session) {
			return nil
		}
		select {
		case <-time.After(settlePollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release gives up exclusive GPU access and starts the settle window used by
// the next Acquire's waitSettled.
func (h *Handle) Release() {
	h.s.settledMu.Lock()
	h.s.lastRelease = timeNow()
	h.s.hasReleased = true
	h.s.settledMu.Unlock()
	h.s.mu.Unlock()
}

// timeNow is indirected so tests can exercise waitSettled's timing logic by
// swapping it, without the production path paying any cost.
var timeNow = time.Now

// WithSession runs fn while holding the GPU lock for session, guaranteeing
// Release runs even if fn panics (spec.md §9: "prefer a scoped-acquisition
// wrapper that guarantees teardown even on panic/exception").
func WithSession(ctx context.Context, s *Serializer, session Session, fn func(ctx context.Context) error) error {
	h, err := s.Acquire(ctx, session)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(ctx)
}
