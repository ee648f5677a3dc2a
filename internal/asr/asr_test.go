package asr

import (
	"errors"
	"testing"
	"time"

	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/dsp"
)

type mockBackend struct {
	loadCalled       int
	closeCalled      int
	loadErr          error
	transcribeResult string
	transcribeErr    error
}

func (m *mockBackend) Load(_ string, _ LoadOptions) error {
	m.loadCalled++
	return m.loadErr
}

func (m *mockBackend) Transcribe(_ []float32) (string, error) {
	return m.transcribeResult, m.transcribeErr
}

func (m *mockBackend) Close() error {
	m.closeCalled++
	return nil
}

func awaitResult(t *testing.T, ch <-chan audio.Result) audio.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for result")
		return audio.Result{}
	}
}

func TestJobWithoutLoadedModelEmitsEmptyResult(t *testing.T) {
	mock := &mockBackend{}
	results := make(chan audio.Result, 1)
	w := newWithBackend(mock, results)
	defer w.Stop()

	job := audio.Job{SequenceID: 1, ChunkID: 0, Buffer: audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}}
	w.SubmitJob(job, dsp.DefaultConfig(), 16000)

	r := awaitResult(t, results)
	if r.Text != "" || r.SequenceID != 1 || r.ChunkID != 0 {
		t.Fatalf("unexpected result for unloaded worker: %+v", r)
	}
}

func TestLoadEngineThenJobTranscribes(t *testing.T) {
	mock := &mockBackend{transcribeResult: "hello world"}
	results := make(chan audio.Result, 1)
	w := newWithBackend(mock, results)
	defer w.Stop()

	w.LoadEngine("/fake/model.bin", LoadOptions{Language: "en"})
	job := audio.Job{SequenceID: 2, ChunkID: 1, Buffer: audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}}
	w.SubmitJob(job, dsp.DefaultConfig(), 16000)

	r := awaitResult(t, results)
	if r.Text != "hello world" {
		t.Fatalf("text = %q, want %q", r.Text, "hello world")
	}
	if r.SequenceID != 2 || r.ChunkID != 1 {
		t.Fatalf("unexpected key: %+v", r)
	}
}

func TestUnloadEngineDropsModel(t *testing.T) {
	mock := &mockBackend{transcribeResult: "x"}
	results := make(chan audio.Result, 1)
	w := newWithBackend(mock, results)
	defer w.Stop()

	w.LoadEngine("/fake/model.bin", LoadOptions{Language: "en"})
	w.UnloadEngine()

	job := audio.Job{SequenceID: 3, Buffer: audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}}
	w.SubmitJob(job, dsp.DefaultConfig(), 16000)

	r := awaitResult(t, results)
	if r.Text != "" {
		t.Fatalf("text = %q, want empty after unload", r.Text)
	}
	if mock.closeCalled == 0 {
		t.Fatal("expected backend.Close() to be called on unload")
	}
}

func TestTranscriptionErrorDegradesToEmptyResult(t *testing.T) {
	mock := &mockBackend{transcribeErr: errors.New("boom")}
	results := make(chan audio.Result, 1)
	w := newWithBackend(mock, results)
	defer w.Stop()

	w.LoadEngine("/fake/model.bin", LoadOptions{Language: "en"})
	job := audio.Job{SequenceID: 4, Buffer: audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}}
	w.SubmitJob(job, dsp.DefaultConfig(), 16000)

	r := awaitResult(t, results)
	if r.Text != "" {
		t.Fatalf("text = %q, want empty on transcription error", r.Text)
	}
}

func TestHallucinationTagIsFiltered(t *testing.T) {
	mock := &mockBackend{transcribeResult: "[BLANK_AUDIO]"}
	results := make(chan audio.Result, 1)
	w := newWithBackend(mock, results)
	defer w.Stop()

	w.LoadEngine("/fake/model.bin", LoadOptions{Language: "en"})
	job := audio.Job{SequenceID: 5, Buffer: audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}}
	w.SubmitJob(job, dsp.DefaultConfig(), 16000)

	r := awaitResult(t, results)
	if r.Text != "" {
		t.Fatalf("text = %q, want hallucination tag filtered to empty", r.Text)
	}
}

func TestJobsProcessStrictlySequentially(t *testing.T) {
	mock := &mockBackend{transcribeResult: "ok"}
	results := make(chan audio.Result, 4)
	w := newWithBackend(mock, results)
	defer w.Stop()

	w.LoadEngine("/fake/model.bin", LoadOptions{Language: "en"})
	for i := uint32(0); i < 3; i++ {
		job := audio.Job{SequenceID: 1, ChunkID: i, Buffer: audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}}
		w.SubmitJob(job, dsp.DefaultConfig(), 16000)
	}

	for i := uint32(0); i < 3; i++ {
		r := awaitResult(t, results)
		if r.ChunkID != i {
			t.Fatalf("result %d out of order: got chunk_id %d", i, r.ChunkID)
		}
	}
}

func TestIsHallucinationTagVariants(t *testing.T) {
	cases := map[string]bool{
		"[BLANK_AUDIO]": true,
		"(Music)":       true,
		"(clapping)":    true,
		"hello there":   false,
		"":              false,
	}
	for text, want := range cases {
		if got := isHallucination(text); got != want {
			t.Errorf("isHallucination(%q) = %v, want %v", text, got, want)
		}
	}
}
