package playback

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tianBreznik/overstimulata-sub000/config"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// Session owns every playback controller of an open book. Controllers are
// created lazily on first interaction and torn down together when the book
// closes or its pagination is invalidated.
type Session struct {
	mu sync.Mutex

	cfg     config.PlaybackConfig
	factory AudioFactory
	hl      Highlighter
	sched   Scheduler
	log     *zap.Logger

	sources map[string]*narration.Source
	slices  map[string][]narration.Slice
	ctrls   map[string]*Controller
	closed  bool
}

func NewSession(cfg config.PlaybackConfig, factory AudioFactory, hl Highlighter, sched Scheduler, log *zap.Logger) *Session {
	return &Session{
		cfg:     cfg,
		factory: factory,
		hl:      hl,
		sched:   sched,
		log:     log.Named("playback"),
		ctrls:   make(map[string]*Controller),
	}
}

// Load installs pagination output: narration sources and their slices.
// Replacing previously loaded content invalidates every live controller
// atomically, stale slice references are never ticked again.
func (s *Session) Load(sources map[string]*narration.Source, slices map[string][]narration.Slice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachAll()
	s.sources = sources
	s.slices = slices
}

// SliceInteracted handles a user interaction with a slice: the narration's
// controller starts (or resumes) playback there, every other narration is
// paused first.
func (s *Session) SliceInteracted(narrationID string, sliceIdx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("playback session is closed")
	}
	ctrl, err := s.controller(narrationID)
	if err != nil {
		return err
	}
	for id, other := range s.ctrls {
		if id != narrationID {
			other.pause(false)
		}
	}
	return ctrl.interact(s, sliceIdx)
}

// SliceVisible marks a slice visible. A controller parked at a page boundary
// resumes automatically when the slice holding its resume word appears,
// unless the user paused deliberately.
func (s *Session) SliceVisible(narrationID string, sliceIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl := s.ctrls[narrationID]
	if ctrl == nil || ctrl.detached {
		return
	}
	ctrl.visible[sliceIdx] = true

	if ctrl.state != StateWaitingForNextSlice || ctrl.manuallyPaused || ctrl.resumeWordIndex < 0 {
		return
	}
	// locate the resume slice by character range, words may not line up with
	// page numbering
	target, err := ctrl.src.SliceForWord(ctrl.slices, ctrl.resumeWordIndex)
	if err != nil {
		s.log.Warn("Resume word is outside slice coverage", zap.String("id", narrationID), zap.Error(err))
		return
	}
	if target != sliceIdx {
		return
	}
	if err := ctrl.interact(s, target); err != nil {
		s.log.Warn("Unable to resume narration", zap.String("id", narrationID), zap.Error(err))
	}
}

// SliceHidden marks a slice invisible. Playback itself continues until it
// runs past the visible range, then parks.
func (s *Session) SliceHidden(narrationID string, sliceIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl := s.ctrls[narrationID]; ctrl != nil {
		ctrl.visible[sliceIdx] = false
	}
}

// PauseAll deliberately pauses every playing narration.
func (s *Session) PauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ctrl := range s.ctrls {
		ctrl.pause(true)
	}
}

// Controller exposes the live controller of a narration, nil when none was
// created yet.
func (s *Session) Controller(narrationID string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrls[narrationID]
}

// Invalidate detaches every controller and drops loaded content. Used on
// re-pagination, pages and slices change identity atomically.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachAll()
	s.sources = nil
	s.slices = nil
}

// Close tears the session down for good.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachAll()
	s.sources = nil
	s.slices = nil
	s.closed = true
	return nil
}

func (s *Session) detachAll() {
	for _, ctrl := range s.ctrls {
		ctrl.detachController()
	}
	s.ctrls = make(map[string]*Controller)
}

func (s *Session) controller(narrationID string) (*Controller, error) {
	if ctrl, ok := s.ctrls[narrationID]; ok {
		return ctrl, nil
	}
	src, ok := s.sources[narrationID]
	if !ok {
		return nil, fmt.Errorf("unknown narration %s", narrationID)
	}
	slices, ok := s.slices[narrationID]
	if !ok || len(slices) == 0 {
		return nil, fmt.Errorf("narration %s has no slices", narrationID)
	}
	ctrl := newController(narrationID, src, slices)
	s.ctrls[narrationID] = ctrl
	return ctrl, nil
}

func (s *Session) interval() time.Duration {
	ms := s.cfg.TickIntervalMS
	if ms <= 0 {
		ms = 16
	}
	return time.Duration(ms) * time.Millisecond
}

// tick runs one frame for a controller under the session lock.
func (s *Session) tick(c *Controller) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.step(s)
}
