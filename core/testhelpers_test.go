package core

import (
	"context"
	"regexp"
	"sync"
	"time"

	memorystore "github.com/kehilla-app/accounts/docstore/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var codeRE = regexp.MustCompile(`\d{6}`)

// captureSMS records sent messages and exposes the last code for tests.
type captureSMS struct {
	mu   sync.Mutex
	sent []string
	last string
	err  error
}

func (s *captureSMS) Send(ctx context.Context, to, message string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	s.last = codeRE.FindString(message)
	return nil
}

func (s *captureSMS) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *captureSMS) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *captureSMS) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestService() (*Service, *captureSMS, *fakeClock) {
	clock := newFakeClock()
	sender := &captureSMS{}
	svc := NewService(memorystore.New(), Options{}).
		WithSMSSender(sender).
		WithClock(clock.Now)
	return svc, sender, clock
}
