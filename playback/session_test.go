package playback

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/tianBreznik/overstimulata-sub000/config"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

type fakeAudio struct {
	pos     float64
	playing bool
	playErr error
	seeks   []float64
}

func (f *fakeAudio) Play() error {
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}
func (f *fakeAudio) Pause()            { f.playing = false }
func (f *fakeAudio) Seek(t float64)    { f.pos = t; f.seeks = append(f.seeks, t) }
func (f *fakeAudio) Position() float64 { return f.pos }

type fakeHighlighter struct {
	progress map[string]map[int]float64
	inits    map[string]int
	cleared  int
}

func newFakeHighlighter() *fakeHighlighter {
	return &fakeHighlighter{progress: make(map[string]map[int]float64), inits: make(map[string]int)}
}

func (f *fakeHighlighter) InitSlice(id string, sl narration.Slice, _ []narration.WordRange) {
	f.inits[id]++
	if f.progress[id] == nil {
		f.progress[id] = make(map[int]float64)
	}
}

func (f *fakeHighlighter) SetWordProgress(id string, wordIndex int, p float64) {
	if f.progress[id] == nil {
		f.progress[id] = make(map[int]float64)
	}
	f.progress[id][wordIndex] = p
}

func (f *fakeHighlighter) ClearSlice(id string, sl narration.Slice) { f.cleared++ }

// fakeScheduler runs scheduled callbacks only when told to.
type fakeScheduler struct{ fns []func() bool }

func (f *fakeScheduler) Schedule(_ time.Duration, tick func() bool) {
	f.fns = append(f.fns, tick)
}

func (f *fakeScheduler) Tick() {
	var live []func() bool
	for _, fn := range f.fns {
		if fn() {
			live = append(live, fn)
		}
	}
	f.fns = live
}

// The quick brown | fox jumps, sliced as two pages.
func foxSource(t *testing.T) *narration.Source {
	t.Helper()
	return narration.NewSource(narration.Payload{
		ID:    "n1",
		Text:  "The quick brown fox jumps",
		Audio: "fox.mp3",
		Words: []narration.Word{
			{Text: "The", Start: 0, End: 0.3},
			{Text: "quick", Start: 0.4, End: 0.9},
			{Text: "brown", Start: 1.0, End: 1.4},
			{Text: "fox", Start: 1.5, End: 1.9},
			{Text: "jumps", Start: 2.0, End: 2.4},
		},
	}, zaptest.NewLogger(t))
}

func foxSlices() []narration.Slice {
	return []narration.Slice{
		{NarrationID: "n1", CharStart: 0, CharEnd: 16},
		{NarrationID: "n1", CharStart: 16, CharEnd: 25},
	}
}

func newTestSession(t *testing.T) (*Session, *fakeAudio, *fakeHighlighter, *fakeScheduler) {
	t.Helper()
	audio := &fakeAudio{}
	hl := newFakeHighlighter()
	sched := &fakeScheduler{}
	s := NewSession(
		config.PlaybackConfig{TickIntervalMS: 16},
		func(ref string) (AudioResource, error) { return audio, nil },
		hl, sched, zaptest.NewLogger(t),
	)
	s.Load(
		map[string]*narration.Source{"n1": foxSource(t)},
		map[string][]narration.Slice{"n1": foxSlices()},
	)
	return s, audio, hl, sched
}

func TestInteractionStartsPlayback(t *testing.T) {
	s, audio, hl, sched := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctrl := s.Controller("n1")
	if ctrl.State() != StatePlaying {
		t.Fatalf("state: %s", ctrl.State())
	}
	if !audio.playing || len(audio.seeks) != 1 || audio.seeks[0] != 0 {
		t.Errorf("audio not started from slice beginning: %+v", audio)
	}

	audio.pos = 0.5
	sched.Tick()
	got := hl.progress["n1"]
	if got[0] != 1 {
		t.Errorf("completed word progress: %v", got[0])
	}
	if p := got[1]; p < 0.19 || p > 0.21 {
		t.Errorf("active word progress: %v", p)
	}
	if got[2] != 0 {
		t.Errorf("pending word progress: %v", got[2])
	}

	// slice initialization is idempotent
	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hl.inits["n1"] != 1 {
		t.Errorf("slice initialized %d times", hl.inits["n1"])
	}
}

func TestManualPauseMidWord(t *testing.T) {
	s, audio, _, _ := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	audio.pos = 1.2 // inside "brown" [1.0, 1.4]
	s.PauseAll()

	ctrl := s.Controller("n1")
	if ctrl.State() != StatePausedWithResume {
		t.Fatalf("state: %s", ctrl.State())
	}
	w, at := ctrl.ResumePoint()
	if w != 2 {
		t.Errorf("resume word: %d", w)
	}
	if at != 1.2 {
		t.Errorf("resume time %v, must be the pause time, not the word start", at)
	}
	if audio.playing {
		t.Error("audio still playing")
	}

	// resuming seeks to the exact pause time
	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	if last := audio.seeks[len(audio.seeks)-1]; last != 1.2 {
		t.Errorf("resume seek: %v", last)
	}
}

func TestPageBoundaryPauseAndResume(t *testing.T) {
	s, audio, _, sched := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	audio.pos = 1.45 // past "brown", before "fox", next page not visible
	sched.Tick()

	ctrl := s.Controller("n1")
	if ctrl.State() != StateWaitingForNextSlice {
		t.Fatalf("state: %s", ctrl.State())
	}
	w, at := ctrl.ResumePoint()
	if w != 3 || at != 1.5 {
		t.Errorf("resume point: word %d at %v", w, at)
	}
	if audio.playing {
		t.Error("audio not paused at the boundary")
	}
	if len(sched.fns) != 0 {
		t.Error("tick loop did not self-terminate")
	}

	// the slice holding the resume word becomes visible
	s.SliceVisible("n1", 1)
	if ctrl.State() != StatePlaying {
		t.Fatalf("state after visibility: %s", ctrl.State())
	}
	if last := audio.seeks[len(audio.seeks)-1]; last != 1.5 {
		t.Errorf("resume seek: %v", last)
	}
}

func TestManualPauseBlocksAutoResume(t *testing.T) {
	s, audio, _, _ := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	audio.pos = 1.2
	s.PauseAll()

	s.SliceVisible("n1", 1)
	if got := s.Controller("n1").State(); got != StatePausedWithResume {
		t.Errorf("deliberate pause overridden by visibility: %s", got)
	}
}

func TestSeamlessSliceSwitch(t *testing.T) {
	s, audio, _, sched := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	s.SliceVisible("n1", 1)
	audio.pos = 1.45
	sched.Tick()

	ctrl := s.Controller("n1")
	if ctrl.State() != StatePlaying {
		t.Fatalf("state: %s", ctrl.State())
	}
	if ctrl.active != 1 {
		t.Errorf("active slice: %d", ctrl.active)
	}
	if !audio.playing {
		t.Error("playback interrupted on a visible boundary")
	}
}

func TestNaturalEnd(t *testing.T) {
	s, audio, hl, sched := newTestSession(t)

	if err := s.SliceInteracted("n1", 1); err != nil {
		t.Fatal(err)
	}
	audio.pos = 2.5 // past "jumps"
	sched.Tick()

	ctrl := s.Controller("n1")
	if ctrl.State() != StateEnded {
		t.Fatalf("state: %s", ctrl.State())
	}
	if hl.cleared == 0 {
		t.Error("highlight state not cleared")
	}
	if w, at := ctrl.ResumePoint(); w != -1 || at != -1 {
		t.Errorf("resume state not reset: %d %v", w, at)
	}
	if audio.playing {
		t.Error("audio still playing after end")
	}
}

func TestStartingOneNarrationPausesOthers(t *testing.T) {
	audioA, audioB := &fakeAudio{}, &fakeAudio{}
	audios := map[string]*fakeAudio{"fox.mp3": audioA, "b.mp3": audioB}
	hl := newFakeHighlighter()
	sched := &fakeScheduler{}

	srcA := foxSource(t)
	srcB := narration.NewSource(narration.Payload{
		ID: "n2", Text: "Other line", Audio: "b.mp3",
		Words: []narration.Word{{Text: "Other", Start: 0, End: 0.5}, {Text: "line", Start: 0.6, End: 1.0}},
	}, zaptest.NewLogger(t))

	s := NewSession(
		config.PlaybackConfig{TickIntervalMS: 16},
		func(ref string) (AudioResource, error) { return audios[ref], nil },
		hl, sched, zaptest.NewLogger(t),
	)
	s.Load(
		map[string]*narration.Source{"n1": srcA, "n2": srcB},
		map[string][]narration.Slice{
			"n1": foxSlices(),
			"n2": {{NarrationID: "n2", CharStart: 0, CharEnd: 10}},
		},
	)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	audioA.pos = 0.5
	if err := s.SliceInteracted("n2", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.Controller("n1").State(); got != StatePausedWithResume {
		t.Errorf("first narration not paused: %s", got)
	}
	if audioA.playing {
		t.Error("first narration audio still playing")
	}
	if !audioB.playing {
		t.Error("second narration audio not playing")
	}
}

func TestUntimedSliceKeepsPlaying(t *testing.T) {
	audio := &fakeAudio{}
	hl := newFakeHighlighter()
	sched := &fakeScheduler{}

	// every timing entry misses the displayed text, nothing aligns
	src := narration.NewSource(narration.Payload{
		ID: "n1", Text: "Alpha beta gamma", Audio: "a.mp3",
		Words: []narration.Word{
			{Text: "zzz", Start: 0, End: 0.5},
			{Text: "qqq", Start: 0.6, End: 1.0},
		},
	}, zaptest.NewLogger(t))

	s := NewSession(
		config.PlaybackConfig{TickIntervalMS: 16},
		func(ref string) (AudioResource, error) { return audio, nil },
		hl, sched, zaptest.NewLogger(t),
	)
	s.Load(
		map[string]*narration.Source{"n1": src},
		map[string][]narration.Slice{"n1": {{NarrationID: "n1", CharStart: 0, CharEnd: 16}}},
	)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	audio.pos = 0.5
	sched.Tick()

	ctrl := s.Controller("n1")
	if ctrl.State() != StatePlaying {
		t.Fatalf("state: %s", ctrl.State())
	}
	if !audio.playing {
		t.Error("audio paused on an untimed slice")
	}
	if len(sched.fns) != 1 {
		t.Error("tick loop terminated on an untimed slice")
	}
	for idx, p := range hl.progress["n1"] {
		if p != 0 {
			t.Errorf("untimed word %d progressed to %v", idx, p)
		}
	}
}

func TestPauseAllSticksWhileWaiting(t *testing.T) {
	s, audio, _, sched := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	audio.pos = 1.45 // past "brown", next page not visible
	sched.Tick()
	ctrl := s.Controller("n1")
	if ctrl.State() != StateWaitingForNextSlice {
		t.Fatalf("state: %s", ctrl.State())
	}

	s.PauseAll()
	s.SliceVisible("n1", 1)
	if audio.playing {
		t.Error("deliberately paused narration resumed on page entry")
	}
	if got := ctrl.State(); got != StateWaitingForNextSlice {
		t.Errorf("state after visibility: %s", got)
	}

	// an explicit interaction still resumes from the kept point
	if err := s.SliceInteracted("n1", 1); err != nil {
		t.Fatal(err)
	}
	if !audio.playing {
		t.Error("explicit interaction did not resume")
	}
	if last := audio.seeks[len(audio.seeks)-1]; last != 1.5 {
		t.Errorf("resume seek: %v", last)
	}
}

func TestInvalidateDetachesControllers(t *testing.T) {
	s, _, _, sched := newTestSession(t)

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	ctrl := s.Controller("n1")
	s.Invalidate()

	if !ctrl.detached {
		t.Error("controller not detached")
	}
	sched.Tick()
	if len(sched.fns) != 0 {
		t.Error("stale tick survived invalidation")
	}
	if err := s.SliceInteracted("n1", 0); err == nil {
		t.Error("interaction against invalidated content succeeded")
	}
}

func TestPlayFailureRetries(t *testing.T) {
	s, audio, _, _ := newTestSession(t)
	audio.playErr = errors.New("decoder stall")

	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatalf("playback failure must not surface: %v", err)
	}
	if got := s.Controller("n1").State(); got != StateIdle {
		t.Fatalf("state after failure: %s", got)
	}

	audio.playErr = nil
	if err := s.SliceInteracted("n1", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.Controller("n1").State(); got != StatePlaying {
		t.Errorf("retry did not start playback: %s", got)
	}
}

func TestClosedSessionRefusesInteraction(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.SliceInteracted("n1", 0); err == nil {
		t.Error("closed session accepted an interaction")
	}
}
