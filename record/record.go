// Package record writes the published value table to a JSON-lines file,
// one line per tick, from a background goroutine.
package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go-vjctl/param"
)

var ErrActive = errors.New("already recording")

// frameBuffer is how many ticks the writer may fall behind before the
// recording is abandoned
const frameBuffer = 512

// Frame is one recorded tick
type Frame struct {
	Beat   float64                `json:"beat"`
	Values map[string]param.Value `json:"values"`
}

// Status reports a recording ending, cleanly or not
type Status struct {
	Active bool
	Path   string
	Err    error
}

type session struct {
	path    string
	frames  chan Frame
	stop    chan struct{}
	overrun chan struct{}

	stopOnce    sync.Once
	overrunOnce sync.Once
}

// Recorder owns at most one recording at a time
type Recorder struct {
	dir    string
	notify func(Status)

	mu      sync.Mutex
	current *session
}

// New returns a recorder writing relative paths below dir. notify is called
// from the writer goroutine when a recording finishes.
func New(dir string, notify func(Status)) *Recorder {
	if notify == nil {
		notify = func(Status) {}
	}
	return &Recorder{dir: dir, notify: notify}
}

// Start begins a recording and returns the final path. An empty name gets a
// timestamped one. The file is opened by the writer goroutine; failures
// arrive through notify.
func (r *Recorder) Start(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return "", ErrActive
	}
	if name == "" {
		name = time.Now().Format("2006-01-02_15-04-05")
	}
	if !strings.HasSuffix(name, ".jsonl") {
		name += ".jsonl"
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, path)
	}
	s := &session{
		path:    path,
		frames:  make(chan Frame, frameBuffer),
		stop:    make(chan struct{}),
		overrun: make(chan struct{}),
	}
	r.current = s
	go r.write(s)
	return path, nil
}

// Active reports whether a recording is running
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Frame queues one tick without blocking. Frames must not be mutated
// after the call.
func (r *Recorder) Frame(f Frame) {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()
	if s == nil {
		return
	}
	select {
	case s.frames <- f:
	default:
		s.overrunOnce.Do(func() { close(s.overrun) })
	}
}

// Stop ends the recording; the writer finishes in the background
func (r *Recorder) Stop() {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()
	if s != nil {
		s.stopOnce.Do(func() { close(s.stop) })
	}
}

func (r *Recorder) finish(s *session, err error) {
	r.mu.Lock()
	if r.current == s {
		r.current = nil
	}
	r.mu.Unlock()
	r.notify(Status{Path: s.path, Err: err})
}

func (r *Recorder) write(s *session) {
	part := s.path + ".part"
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(part), 0755); err != nil {
			return err
		}
		f, err := os.Create(part)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)

		fail := func(err error) error {
			f.Close()
			return err
		}
		for {
			select {
			case fr := <-s.frames:
				if err := enc.Encode(fr); err != nil {
					return fail(err)
				}
			case <-s.overrun:
				return fail(fmt.Errorf("writer fell behind by %d frames", frameBuffer))
			case <-s.stop:
				// drain what was queued before the stop
				for {
					select {
					case fr := <-s.frames:
						if err := enc.Encode(fr); err != nil {
							return fail(err)
						}
						continue
					default:
					}
					break
				}
				if err := w.Flush(); err != nil {
					return fail(err)
				}
				if err := f.Close(); err != nil {
					return err
				}
				return os.Rename(part, s.path)
			}
		}
	}()
	if err != nil {
		os.Remove(part)
		err = fmt.Errorf("record %s: %w", s.path, err)
	}
	r.finish(s, err)
}
