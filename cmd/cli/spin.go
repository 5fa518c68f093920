package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Spinner struct {
	frames  []string
	message string
	writer  io.Writer
	every   time.Duration

	mu      sync.Mutex
	running bool

	stop sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer: w,
		every:  time.Millisecond * 90,
		done:   make(chan struct{}),
	}
}

func (s *Spinner) SetMessage(msg string) {
	msg = strings.TrimSpace(msg)
	msg = strings.TrimRight(msg, ".")
	s.message = msg
}

func (s *Spinner) Run(fn func() error) error {
	s.Start()
	defer s.Stop()
	return fn()
}

// Stop waits for the last frame to be written and clears the line.
func (s *Spinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.running {
			clearLine(s.writer)
		}
	})
}

func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.run()
}

func (s *Spinner) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ticker.C:
			f := s.frames[i%len(s.frames)]
			fmt.Fprintf(s.writer, "\r%s", f)
			if s.message != "" {
				fmt.Fprintf(s.writer, " %s...", s.message)
			}
		case <-s.done:
			return
		}
	}
}

func clearLine(w io.Writer) {
	io.WriteString(w, "\x1b[0G\x1b[2K\x1b[0G")
}
