package ingest

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mareekkk/logstream/internal/broadcast"
	"github.com/mareekkk/logstream/internal/models"
	"github.com/mareekkk/logstream/internal/runtime"
	"github.com/mareekkk/logstream/internal/scrub"
	"github.com/mareekkk/logstream/internal/store"
)

// pollInterval is the fixed container-inventory poll cadence.
const pollInterval = 10 * time.Second

// Supervisor discovers running containers on a fixed interval and keeps
// exactly one tailer goroutine alive per running, non-self container.
type Supervisor struct {
	rt       runtime.Runtime
	st       *store.Store
	bc       *broadcast.Broadcaster
	scrubber *scrub.Scrubber
	log      *slog.Logger
	hostname string

	restartDelay time.Duration

	mu      sync.Mutex
	handles map[string]models.TailerHandle
}

func NewSupervisor(rt runtime.Runtime, st *store.Store, bc *broadcast.Broadcaster, scrubber *scrub.Scrubber, log *slog.Logger, restartDelay time.Duration) *Supervisor {
	hostname, _ := os.Hostname()
	if restartDelay <= 0 {
		restartDelay = 5 * time.Second
	}
	return &Supervisor{
		rt:           rt,
		st:           st,
		bc:           bc,
		scrubber:     scrubber,
		log:          log,
		hostname:     hostname,
		restartDelay: restartDelay,
		handles:      make(map[string]models.TailerHandle),
	}
}

// Run polls the container inventory until ctx is cancelled, starting and
// stopping tailers to match. It blocks until ctx is done, then cancels
// every live tailer and waits for them to exit.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

func (s *Supervisor) reconcile(ctx context.Context) {
	containers, err := s.rt.ListContainers(ctx)
	if err != nil {
		s.log.Warn("list containers failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(containers))
	for _, c := range containers {
		if s.isSelf(c) {
			continue
		}
		seen[c.ID] = true
	}

	// Drop handles for containers that disappeared, and notice tailers
	// that exited on their own (stream EOF, transient error) while their
	// container is still running — those get restarted below instead of
	// staying silently dead until the container itself is recreated.
	restart := make(map[string]bool)
	for id, h := range s.handles {
		if !seen[id] {
			h.Cancel()
			delete(s.handles, id)
			continue
		}
		select {
		case <-h.Done:
			delete(s.handles, id)
			restart[id] = true
		default:
		}
	}

	for _, c := range containers {
		if s.isSelf(c) {
			continue
		}
		if _, ok := s.handles[c.ID]; ok {
			continue
		}
		if restart[c.ID] {
			s.log.Info("tailer exited, restarting after delay", "service", resolveServiceName(c), "container", c.ID, "delay", s.restartDelay)
			s.scheduleRestart(ctx, c)
			continue
		}
		s.startTailer(ctx, c)
	}
}

// scheduleRestart starts the tailer again after restartDelay, guarding
// against the container having disappeared or already been restarted by a
// later poll in the meantime.
func (s *Supervisor) scheduleRestart(ctx context.Context, c runtime.ContainerInfo) {
	time.AfterFunc(s.restartDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.handles[c.ID]; ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.startTailer(ctx, c)
	})
}

func (s *Supervisor) startTailer(ctx context.Context, c runtime.ContainerInfo) {
	service := resolveServiceName(c)
	tailerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t := &tailer{
		rt:          s.rt,
		st:          s.st,
		bc:          s.bc,
		scrubber:    s.scrubber,
		log:         s.log,
		containerID: c.ID,
		service:     service,
		since:       models.NowISO(),
	}

	s.handles[c.ID] = models.TailerHandle{
		ContainerID: c.ID,
		Service:     service,
		Cancel:      cancel,
		Done:        done,
	}

	s.log.Info("tailer starting", "service", service, "container", c.ID)
	go func() {
		defer close(done)
		t.run(tailerCtx)
	}()
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.handles {
		h.Cancel()
		delete(s.handles, id)
	}
}

// isSelf is a best-effort guard against the collector ingesting its own
// container's logs: it compares the process hostname (which Docker sets to
// the short container id) against each candidate's id.
func (s *Supervisor) isSelf(c runtime.ContainerInfo) bool {
	if s.hostname == "" {
		return false
	}
	return strings.HasPrefix(c.ID, s.hostname) || strings.HasPrefix(s.hostname, shortID(c.ID))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// resolveServiceName implements the label -> stripped-name -> short-id
// resolution order.
func resolveServiceName(c runtime.ContainerInfo) string {
	if c.ComposeLabel != "" {
		return c.ComposeLabel
	}
	if name := strings.TrimPrefix(c.Name, "/"); name != "" {
		return name
	}
	return shortID(c.ID)
}
