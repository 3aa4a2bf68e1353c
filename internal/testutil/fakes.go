package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dcspace-backend/internal/apperror"
	"dcspace-backend/internal/models"
)

// FixedClock returns a settable instant.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MemoryObjectStore keeps uploads in memory. Setting Fail makes every call
// return an Unavailable error.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	Fail    bool
	Deleted []string
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: map[string][]byte{}}
}

func (s *MemoryObjectStore) Store(_ context.Context, data []byte, _ string, logicalPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return "", apperror.Unavailable("storage.store", fmt.Errorf("storage offline"))
	}
	s.seq++
	key := fmt.Sprintf("%s#%d", logicalPath, s.seq)
	s.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *MemoryObjectStore) Resolve(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return "", apperror.Unavailable("storage.resolve", fmt.Errorf("storage offline"))
	}
	if _, ok := s.objects[key]; !ok {
		return "", apperror.NotFound("storage.resolve", "object %s not found", key)
	}
	return "https://objects.test/" + key, nil
}

func (s *MemoryObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.Deleted = append(s.Deleted, key)
	return nil
}

// Object returns the stored bytes for key.
func (s *MemoryObjectStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

func (s *MemoryObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// RecordingPublisher collects published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []models.RentEvent
}

func (p *RecordingPublisher) Publish(event models.RentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *RecordingPublisher) Events() []models.RentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.RentEvent(nil), p.events...)
}

// Types returns the published event types in order.
func (p *RecordingPublisher) Types() []models.RentEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.RentEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
