// Package monitor holds the state of the live monitoring loop shared by the
// HTTP handlers and the periodic generator.
package monitor

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start when monitoring is on
var ErrAlreadyRunning = errors.New("monitoring already running")

// FileRef points at a stored recording
type FileRef struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// IsZero reports whether the reference is unset
func (f FileRef) IsZero() bool {
	return f.Name == ""
}

// Session is the monitoring state. The zero value is a stopped session.
type Session struct {
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	latest    FileRef
	processed FileRef
}

// NewSession creates a stopped session
func NewSession() *Session {
	return &Session{}
}

// Start turns monitoring on
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.startedAt = time.Now()
	return nil
}

// Stop turns monitoring off and forgets the last processed file. Stopping a
// stopped session is not an error.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.processed = FileRef{}
}

// Running reports whether monitoring is on
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// StartedAt returns when monitoring was last started
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// SetLatest records the newest generated recording. Older references are
// ignored so concurrent writers cannot move the pointer backwards.
func (s *Session) SetLatest(ref FileRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.latest.IsZero() && ref.Time.Before(s.latest.Time) {
		return
	}
	s.latest = ref
}

// Latest returns the newest generated recording, if any
func (s *Session) Latest() (FileRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, !s.latest.IsZero()
}

// MarkProcessed records the recording most recently classified
func (s *Session) MarkProcessed(ref FileRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = ref
}

// LastProcessed returns the recording most recently classified, if any
func (s *Session) LastProcessed() (FileRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed, !s.processed.IsZero()
}
