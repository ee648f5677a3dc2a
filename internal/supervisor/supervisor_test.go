package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxcore/voxd/internal/asr"
	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/chunk"
	"github.com/voxcore/voxd/internal/config"
	"github.com/voxcore/voxd/internal/dsp"
	"github.com/voxcore/voxd/internal/hotkey"
	"github.com/voxcore/voxd/internal/output"
	"github.com/voxcore/voxd/internal/ring"
	"github.com/voxcore/voxd/internal/vocab"
)

// fakeEngine replaces the ASR worker in tests: it records submitted
// jobs instead of transcribing them.
type fakeEngine struct {
	mu     sync.Mutex
	loaded bool
	jobs   []audio.Job
}

func (f *fakeEngine) IsLoaded() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.loaded }
func (f *fakeEngine) LoadEngine(string, asr.LoadOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
}
func (f *fakeEngine) UnloadEngine() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
}
func (f *fakeEngine) SubmitJob(job audio.Job, _ dsp.Config, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}
func (f *fakeEngine) Stop() {}

func (f *fakeEngine) jobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeEngine) {
	t.Helper()
	buf := ring.New(1, audio.SampleRate)
	chunker := chunk.New(buf, uint64(audio.SampleRate), uint64(audio.SampleRate/2), audio.SampleRate, "low")
	fe := &fakeEngine{}
	vocabulary, err := vocab.Parse(nil)
	if err != nil {
		t.Fatalf("vocab.Parse: %v", err)
	}
	sink := output.New(output.Config{}, nil)

	cfg := config.Default()
	cfg.Queue.ChunkIntervalSecs = 0.05

	s := New(Options{
		Ring:       buf,
		Chunker:    chunker,
		AsrWorker:  fe,
		AsrResults: make(chan audio.Result, 8),
		Vocabulary: vocabulary,
		Corrector:  nil,
		Output:     sink,
		Config:     cfg,
		Version:    "test",
	})
	return s, fe
}

func TestStartRecordingCreatesSessionAndLoadsModel(t *testing.T) {
	s, fe := newTestSupervisor(t)
	s.startRecording()

	if s.session == nil {
		t.Fatal("expected an active session after startRecording")
	}
	if !fe.loaded {
		t.Error("expected the model to be loaded on first recording")
	}
}

func TestStopRecordingClearsSessionAndEmitsFinalChunk(t *testing.T) {
	s, fe := newTestSupervisor(t)
	s.startRecording()
	s.ring.Push(make([]float32, audio.SampleRate)) // 1s of silence
	s.stopRecording()

	if s.session != nil {
		t.Error("expected session to be cleared after stopRecording")
	}
	if fe.jobCount() != 1 || !fe.jobs[0].IsFinal {
		t.Errorf("expected exactly one final job on stop, got %+v", fe.jobs)
	}
}

func TestToggleRecordingFlipsState(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.toggleRecording()
	if s.session == nil {
		t.Fatal("expected toggle to start a session")
	}
	s.toggleRecording()
	if s.session != nil {
		t.Fatal("expected second toggle to stop the session")
	}
}

func TestHandleHotkeyPushToTalkModeStartsOnPressStopsOnRelease(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.cfg.Hotkey.Mode = "push_to_talk"

	s.handleHotkeyEvent(hotkey.Pressed)
	if s.session == nil {
		t.Fatal("expected Pressed to start recording in push_to_talk mode")
	}
	s.handleHotkeyEvent(hotkey.Released)
	if s.session != nil {
		t.Fatal("expected Released to stop recording in push_to_talk mode")
	}
}

func TestHandleHotkeyToggleModeIgnoresRelease(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.cfg.Hotkey.Mode = "toggle"

	s.handleHotkeyEvent(hotkey.Pressed)
	if s.session == nil {
		t.Fatal("expected Pressed to start recording in toggle mode")
	}
	s.handleHotkeyEvent(hotkey.Released)
	if s.session == nil {
		t.Fatal("Released should be a no-op in toggle mode")
	}
}

func TestHandleTickSubmitsJobWhileRecording(t *testing.T) {
	s, fe := newTestSupervisor(t)
	s.startRecording()
	s.ring.Push(make([]float32, audio.SampleRate)) // enough for one chunk

	s.handleTick()

	if fe.jobCount() == 0 {
		t.Error("expected a job to be submitted on tick while recording")
	}
}

func TestHandleTickNoOpWhenIdle(t *testing.T) {
	s, fe := newTestSupervisor(t)
	s.ring.Push(make([]float32, audio.SampleRate))
	s.handleTick()
	if fe.jobCount() != 0 {
		t.Error("expected no job submission while idle")
	}
}

func TestHandleResultRunsThroughVocabAndOutput(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.handleResult(audio.Result{Text: "hello world", SequenceID: 1, ChunkID: 0, IsFinal: true})

	if len(s.history) != 1 {
		t.Fatalf("expected one history item, got %d", len(s.history))
	}
	if s.history[0].Text != "hello world" {
		t.Errorf("history text = %q", s.history[0].Text)
	}
}

func TestHandleResultEmptyTextRecordsNoHistory(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.handleResult(audio.Result{Text: "", SequenceID: 1, ChunkID: 0, IsFinal: true})
	if len(s.history) != 0 {
		t.Errorf("expected no history entry for an empty result, got %d", len(s.history))
	}
}

func TestStatusSnapshotReflectsRecordingState(t *testing.T) {
	s, _ := newTestSupervisor(t)
	idle := s.statusSnapshot()
	if idle.Recording {
		t.Error("expected recording=false while idle")
	}
	if !idle.Running {
		t.Error("expected running=true")
	}

	s.startRecording()
	recording := s.statusSnapshot()
	if !recording.Recording {
		t.Error("expected recording=true once recording starts")
	}
	if recording.RecordingDuration == nil {
		t.Error("expected a non-nil recording duration while recording")
	}
}

func TestHistoryPageOrdersNewestFirstAndPaginates(t *testing.T) {
	s, _ := newTestSupervisor(t)
	for i := 0; i < 5; i++ {
		s.recordHistory(string(rune('a'+i)), false, 1.0)
	}

	page, total := s.historyPage(2, 0)
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].Text != "e" || page[1].Text != "d" {
		t.Errorf("unexpected first page: %+v", page)
	}

	page2, _ := s.historyPage(2, 2)
	if len(page2) != 2 || page2[0].Text != "c" || page2[1].Text != "b" {
		t.Errorf("unexpected second page: %+v", page2)
	}
}

func TestConfigGetSetRoundtripsThroughSupervisor(t *testing.T) {
	s, _ := newTestSupervisor(t)
	if err := s.applyConfigSet("hotkey.key", "f9"); err != nil {
		t.Fatalf("applyConfigSet: %v", err)
	}
	val, err := s.cfg.GetValue("hotkey.key")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if val != "f9" {
		t.Errorf("hotkey.key = %q, want f9", val)
	}
}

func TestRunProcessesHotkeyEventsAndShutsDownOnStopRequest(t *testing.T) {
	s, _ := newTestSupervisor(t)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	s.OnHotkeyEvent(hotkey.Pressed)
	time.Sleep(20 * time.Millisecond)
	if !s.asrWorker.IsLoaded() {
		t.Error("expected model load to have been requested by now")
	}

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
