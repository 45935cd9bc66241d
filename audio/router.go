package audio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Router fans the audio out to several sinks, e.g. the broadcast exciter
// and a local monitoring speaker. The Router implements the Sink
// interface itself.
type Router struct {
	sync.RWMutex // for map & variables
	sinks        map[string]*sink
}

type sink struct {
	Sink
	active bool
}

// NewRouter returns an initialized router for audio sinks.
func NewRouter() *Router {
	return &Router{
		sinks: make(map[string]*sink),
	}
}

// AddSink adds an audio device which satisfies the Sink interface. When
// marked as active, the audio will be played on this device.
func (r *Router) AddSink(name string, s Sink, active bool) {
	r.Lock()
	defer r.Unlock()
	r.sinks[name] = &sink{s, active}
}

// Play plays the audio concurrently on all active sinks and blocks until
// every one of them has returned.
func (r *Router) Play(ctx context.Context, ulaw []byte) error {

	r.RLock()
	active := make(map[string]Sink, len(r.sinks))
	for name, s := range r.sinks {
		if s.active {
			active[name] = s.Sink
		}
	}
	r.RUnlock()

	var mu sync.Mutex
	var errs SinkErrors
	var wg sync.WaitGroup

	for name, s := range active {
		wg.Add(1)
		go func(name string, s Sink) {
			defer wg.Done()
			if err := s.Play(ctx, ulaw); err != nil {
				mu.Lock()
				errs = append(errs, &SinkError{Name: name, Err: err})
				mu.Unlock()
			}
		}(name, s)
	}
	wg.Wait()

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
		return errs
	}
	return nil
}

// Close closes all sinks.
func (r *Router) Close() error {
	r.Lock()
	defer r.Unlock()

	var errs SinkErrors
	for name, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, &SinkError{Name: name, Err: err})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SinkError is an Error which is used when data could not be written to
// a particular audio Sink.
type SinkError struct {
	Name string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Name, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// SinkErrors contains the errors of all sinks which failed.
type SinkErrors []*SinkError

func (e SinkErrors) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return strings.Join(s, "; ")
}
