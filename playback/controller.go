package playback

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// State of one narration's controller.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePausedWithResume
	StateWaitingForNextSlice
	StateEnded
)

var stateNames = [...]string{"idle", "playing", "paused", "waiting-for-next-slice", "ended"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Controller owns playback state of one narration source: its audio resource,
// the active slice pointer, visibility of all slices and the resume point
// carried across page boundaries. Created lazily on first interaction,
// detached when the session ends or content is invalidated. All methods run
// under the session lock.
type Controller struct {
	id     string
	src    *narration.Source
	slices []narration.Slice

	audioRef string
	audio    AudioResource

	state   State
	active  int
	visible map[int]bool
	inited  map[int]bool

	resumeWordIndex int
	resumeTime      float64
	manuallyPaused  bool

	detached bool
	ticking  bool
}

func newController(id string, src *narration.Source, slices []narration.Slice) *Controller {
	return &Controller{
		id:              id,
		src:             src,
		slices:          slices,
		audioRef:        src.Audio,
		visible:         make(map[int]bool),
		inited:          make(map[int]bool),
		resumeWordIndex: -1,
		resumeTime:      -1,
	}
}

// State reports the controller's current state.
func (c *Controller) State() State {
	return c.state
}

// ResumePoint returns the pending resume word index and time, index is -1
// when no resume point is held.
func (c *Controller) ResumePoint() (int, float64) {
	return c.resumeWordIndex, c.resumeTime
}

// interact starts or resumes playback on the given slice. Word markup for the
// slice is initialized on demand, exactly once.
func (c *Controller) interact(s *Session, sliceIdx int) error {
	if c.detached {
		return fmt.Errorf("narration %s: controller is detached", c.id)
	}
	if sliceIdx < 0 || sliceIdx >= len(c.slices) {
		return fmt.Errorf("narration %s: no slice %d", c.id, sliceIdx)
	}
	if c.audio == nil {
		audio, err := s.factory(c.audioRef)
		if err != nil {
			// pre-playback state is kept, the next interaction retries
			s.log.Warn("Unable to open narration audio", zap.String("id", c.id), zap.Error(err))
			return nil
		}
		c.audio = audio
	}

	c.active = sliceIdx
	c.visible[sliceIdx] = true
	c.initSlice(s, sliceIdx)

	var at float64
	switch {
	case c.resumeTime >= 0:
		at = c.resumeTime
	case c.resumeWordIndex >= 0 && c.resumeWordIndex < len(c.src.Ranges) && c.src.Ranges[c.resumeWordIndex].Valid:
		at = c.src.Ranges[c.resumeWordIndex].Start
	default:
		at, _ = c.src.SliceStartTime(c.slices[sliceIdx])
	}
	c.audio.Seek(at)
	if err := c.audio.Play(); err != nil {
		s.log.Warn("Narration audio failed to start", zap.String("id", c.id), zap.Error(err))
		return nil
	}

	c.resumeWordIndex, c.resumeTime = -1, -1
	c.manuallyPaused = false
	c.state = StatePlaying
	c.startTick(s)
	return nil
}

func (c *Controller) initSlice(s *Session, idx int) {
	if c.inited[idx] {
		return
	}
	c.inited[idx] = true
	s.hl.InitSlice(c.id, c.slices[idx], c.src.WordsIn(c.slices[idx]))
}

func (c *Controller) startTick(s *Session) {
	if c.ticking {
		return
	}
	c.ticking = true
	s.sched.Schedule(s.interval(), func() bool {
		return s.tick(c)
	})
}

// step runs one highlight frame. Returns false to terminate the schedule.
// Caller holds the session lock.
func (c *Controller) step(s *Session) bool {
	if c.detached || c.state != StatePlaying {
		c.ticking = false
		return false
	}
	t := c.audio.Position()

	// all visible slices of this narration update in the same frame, not
	// only the active one
	for idx, vis := range c.visible {
		if !vis {
			continue
		}
		c.initSlice(s, idx)
		for _, w := range c.src.WordsIn(c.slices[idx]) {
			s.hl.SetWordProgress(c.id, w.Index, c.src.WordProgress(w.Index, t))
		}
	}

	end, timed := c.src.SliceEndTime(c.slices[c.active])
	if !timed {
		// no word of the active slice carries a valid timing, so the slice has
		// no known end. Audio keeps playing with highlights at zero.
		return true
	}
	if t < end {
		return true
	}

	if c.active == len(c.slices)-1 {
		c.finish(s)
		return false
	}
	if next := c.active + 1; c.visible[next] {
		// next page already on screen, switch slices without pausing
		c.initSlice(s, next)
		c.active = next
		return true
	}

	// next slice's page is off screen, park at the first word that has not
	// started yet
	c.state = StateWaitingForNextSlice
	if w := c.src.FirstUnstartedWord(t); w >= 0 {
		c.resumeWordIndex = w
		c.resumeTime = c.src.Ranges[w].Start
	}
	c.audio.Pause()
	c.ticking = false
	return false
}

// pause captures the resume point from the authoritative clock, never from
// frame-loop state.
func (c *Controller) pause(manual bool) {
	if c.state == StateWaitingForNextSlice && manual {
		// a parked narration already holds its resume point, but a deliberate
		// pause still has to stick so page entry does not auto-resume
		c.manuallyPaused = true
		return
	}
	if c.state != StatePlaying || c.audio == nil {
		return
	}
	t := c.audio.Position()
	w := c.src.CurrentWordIndex(t)
	if w < 0 {
		w = c.src.FirstUnstartedWord(t)
	}
	c.resumeWordIndex = w
	c.resumeTime = t
	c.manuallyPaused = manual
	c.state = StatePausedWithResume
	c.audio.Pause()
}

// finish handles natural end of audio: every slice's highlight state is
// cleared and the resume point is reset.
func (c *Controller) finish(s *Session) {
	for idx := range c.inited {
		s.hl.ClearSlice(c.id, c.slices[idx])
	}
	c.inited = make(map[int]bool)
	c.resumeWordIndex, c.resumeTime = -1, -1
	c.manuallyPaused = false
	c.state = StateEnded
	c.audio.Pause()
	c.ticking = false
}

// detachController halts the controller: the tick self-terminates on its next
// run, audio is paused and resume state cleared. A detached controller
// refuses any further scheduling.
func (c *Controller) detachController() {
	c.detached = true
	c.state = StateIdle
	c.resumeWordIndex, c.resumeTime = -1, -1
	c.manuallyPaused = false
	c.ticking = false
	if c.audio != nil {
		c.audio.Pause()
	}
}
