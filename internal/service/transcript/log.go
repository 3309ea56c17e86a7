// Package transcript holds the ordered, append-only record of committed entries
// and fans new entries and partial views out to subscribers.
package transcript

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
)

// Event is a committed entry, a partial view update, synthesized audio or a clear notice.
type Event struct {
	Entry   *models.TranscriptEntry   `json:"entry,omitempty"`
	Partial *models.PartialUpdate     `json:"partial,omitempty"`
	Spoken  *models.SpokenTranslation `json:"spoken,omitempty"`
	Cleared bool                      `json:"cleared,omitempty"`
}

// Kind names the event for metrics and logs.
func (e Event) Kind() string {
	switch {
	case e.Entry != nil:
		return "entry"
	case e.Partial != nil:
		return "partial"
	case e.Spoken != nil:
		return "spoken"
	case e.Cleared:
		return "cleared"
	default:
		return "empty"
	}
}

// lossy events are superseded by later ones and may be dropped for a slow subscriber.
func (e Event) lossy() bool {
	return e.Partial != nil || e.Spoken != nil
}

// Log is safe for concurrent use. Entries are kept in emission order.
type Log struct {
	mu      sync.RWMutex
	entries []models.TranscriptEntry
	subs    map[int]*subscriber
	nextSub int
	buffer  int
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewLog creates an empty log. bufferSize bounds how many partial and audio
// events wait for each subscriber; entries and clears always queue.
func NewLog(bufferSize int) *Log {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Log{
		subs:    make(map[int]*subscriber),
		buffer:  bufferSize,
		metrics: metrics.DefaultMetrics,
		log: logging.WithComponent("transcript").
			Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second}),
	}
}

// EmitEntry appends e and notifies subscribers.
func (l *Log) EmitEntry(e models.TranscriptEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	l.broadcast(Event{Entry: &e})
}

// EmitPartial forwards p to subscribers without storing it.
func (l *Log) EmitPartial(p models.PartialUpdate) {
	l.broadcast(Event{Partial: &p})
}

// EmitSpoken forwards synthesized audio to subscribers without storing it.
func (l *Log) EmitSpoken(s models.SpokenTranslation) {
	l.broadcast(Event{Spoken: &s})
}

// Entries returns a copy of the log in order.
func (l *Log) Entries() []models.TranscriptEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every entry and tells subscribers.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
	l.broadcast(Event{Cleared: true})
}

// Subscribe registers a listener. Events arrive in emission order. The returned
// func unsubscribes; the channel is closed once its delivery goroutine exits.
func (l *Log) Subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	s := newSubscriber(l.buffer)
	l.subs[id] = s
	l.mu.Unlock()

	go s.run()

	var once sync.Once
	return s.out, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(s.done)
		})
	}
}

func (l *Log) broadcast(ev Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.subs {
		dropped, ok := s.enqueue(ev)
		if !ok {
			continue
		}
		l.metrics.RecordTranscriptEventDropped(dropped.Kind())
		l.log.Warn().
			Str("dropped", dropped.Kind()).
			Str("queued", ev.Kind()).
			Int("backlog", s.backlog()).
			Msg("Subscriber falling behind, lossy event dropped")
	}
}

// subscriber owns one listener's queue. enqueue never blocks; run delivers.
type subscriber struct {
	mu    sync.Mutex
	queue []Event
	limit int
	wake  chan struct{}
	done  chan struct{}
	out   chan Event
}

func newSubscriber(limit int) *subscriber {
	return &subscriber{
		limit: limit,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		out:   make(chan Event),
	}
}

// enqueue adds ev. Once the queue is at its limit the oldest lossy event is
// evicted to make room; a lossy ev is itself dropped if nothing lossy is queued.
// It returns the dropped event, if any.
func (s *subscriber) enqueue(ev Event) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped Event
	var didDrop bool
	if len(s.queue) >= s.limit {
		if i := s.oldestLossy(); i >= 0 {
			dropped, didDrop = s.queue[i], true
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
		} else if ev.lossy() {
			return ev, true
		}
	}
	s.queue = append(s.queue, ev)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return dropped, didDrop
}

func (s *subscriber) oldestLossy() int {
	for i, ev := range s.queue {
		if ev.lossy() {
			return i
		}
	}
	return -1
}

func (s *subscriber) backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return ev, true
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		ev, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
