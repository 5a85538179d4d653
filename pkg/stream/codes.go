package stream

import (
	"sort"
	"sync"
	"time"
)

// Code is a QR payload seen by the camera.
type Code struct {
	Data      string    `json:"data"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
}

// CodeLog remembers every distinct QR payload.
type CodeLog struct {
	mu    sync.Mutex
	codes map[string]*Code
}

// NewCodeLog returns an empty log.
func NewCodeLog() *CodeLog {
	return &CodeLog{codes: make(map[string]*Code)}
}

// Record notes a sighting of data and reports whether it is new.
func (l *CodeLog) Record(data string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	code, ok := l.codes[data]
	if !ok {
		code = &Code{Data: data, FirstSeen: now}
		l.codes[data] = code
	}
	code.LastSeen = now
	code.Count++
	return !ok
}

// List returns every payload seen, oldest first.
func (l *CodeLog) List() []Code {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Code, 0, len(l.codes))
	for _, code := range l.codes {
		out = append(out, *code)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].Data < out[j].Data
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}
