// Package asr implements the ASR worker: a dedicated goroutine that
// owns an optional speech-recognition model and processes jobs strictly
// sequentially off a tagged-union command channel.
package asr

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/dsp"
)

// ErrModelNotFound is returned when the model file is missing on disk.
var ErrModelNotFound = errors.New("asr: model not found — download it before loading")

// LoadOptions carries the transcription-affecting model options from
// config.TranscriptionConfig into the backend at load time. The
// config's Device field has no counterpart here and is not forwarded to
// the backend: the whisper.cpp Go bindings select GPU vs CPU at build
// time (the linked library either has GPU support compiled in or it
// doesn't), not per-context, so there is no runtime call to make.
type LoadOptions struct {
	Language  string // ISO 639-1 code, or "auto" to detect
	Translate bool   // translate to English instead of transcribing verbatim
}

// Backend abstracts the whisper.cpp bindings so tests never link CGo.
type Backend interface {
	Load(modelPath string, opts LoadOptions) error
	Transcribe(pcm []float32) (string, error)
	Close() error
}

type realBackend struct {
	model   whisperlib.Model
	context whisperlib.Context
}

func newRealBackend() *realBackend { return &realBackend{} }

func (r *realBackend) Load(modelPath string, opts LoadOptions) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return ErrModelNotFound
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return fmt.Errorf("asr: load model %q: %w", modelPath, err)
	}
	r.model = model

	ctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return fmt.Errorf("asr: create context: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	if lang != "auto" {
		if err := ctx.SetLanguage(lang); err != nil {
			log.Printf("asr: set language %q failed, falling back to auto: %v", lang, err)
		}
	}
	ctx.SetTranslate(opts.Translate)

	// Greedy decoding, best_of = 1: the worker favors latency over the
	// marginal accuracy gain of beam search for short dictation bursts.
	ctx.SetBeamSize(1)
	ctx.SetMaxContext(0) // each job is decoded independently

	r.context = ctx
	return nil
}

func (r *realBackend) Transcribe(pcm []float32) (string, error) {
	if r.context == nil {
		return "", fmt.Errorf("asr: not loaded")
	}
	if err := r.context.Process(pcm, nil, nil, nil); err != nil {
		return "", fmt.Errorf("asr: process: %w", err)
	}
	var text string
	for {
		seg, err := r.context.NextSegment()
		if err != nil {
			break
		}
		text += seg.Text
	}
	return text, nil
}

func (r *realBackend) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// command is the tagged union of operations accepted by the worker.
type command struct {
	kind       commandKind
	job        audio.Job
	engine     string // model path, for loadEngine
	loadOpts   LoadOptions
	dspCfg     dsp.Config
	sampleRate int
}

type commandKind int

const (
	cmdJob commandKind = iota
	cmdLoadEngine
	cmdUnloadEngine
)

// Worker runs on one dedicated goroutine locked to its own OS thread,
// consuming commands strictly sequentially so a single model instance is
// reused across jobs.
type Worker struct {
	backend Backend
	cmds    chan command
	results chan<- audio.Result
	done    chan struct{}

	loaded    atomic.Bool // read from other goroutines via IsLoaded
	modelPath string
}

// New starts a Worker backed by the real whisper.cpp bindings. results
// receives one audio.Result per submitted job, in completion order.
func New(results chan<- audio.Result) *Worker {
	return newWithBackend(newRealBackend(), results)
}

func newWithBackend(b Backend, results chan<- audio.Result) *Worker {
	w := &Worker{
		backend: b,
		cmds:    make(chan command, 8),
		results: results,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// SubmitJob enqueues a transcription job. Never blocks the caller beyond
// the channel's buffer; the worker itself is strictly sequential.
func (w *Worker) SubmitJob(job audio.Job, cfg dsp.Config, sampleRate int) {
	w.cmds <- command{kind: cmdJob, job: job, dspCfg: cfg, sampleRate: sampleRate}
}

// LoadEngine atomically replaces the model slot, applying opts (language,
// translate) to the new context.
func (w *Worker) LoadEngine(modelPath string, opts LoadOptions) {
	w.cmds <- command{kind: cmdLoadEngine, engine: modelPath, loadOpts: opts}
}

// UnloadEngine drops the current model, releasing accelerator memory.
func (w *Worker) UnloadEngine() {
	w.cmds <- command{kind: cmdUnloadEngine}
}

// Stop drains the current job (if any) and exits. Bounded because the
// worker is serial — there is never more than one job in flight.
func (w *Worker) Stop() {
	close(w.cmds)
	<-w.done
}

// IsLoaded reports whether a model is currently loaded. Safe to call
// from any goroutine.
func (w *Worker) IsLoaded() bool { return w.loaded.Load() }

func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)
	for cmd := range w.cmds {
		switch cmd.kind {
		case cmdJob:
			w.handleJob(cmd)
		case cmdLoadEngine:
			w.handleLoadEngine(cmd.engine, cmd.loadOpts)
		case cmdUnloadEngine:
			w.handleUnloadEngine()
		}
	}
}

func (w *Worker) handleLoadEngine(modelPath string, opts LoadOptions) {
	if w.loaded.Load() {
		if err := w.backend.Close(); err != nil {
			log.Printf("asr: close previous model (non-fatal): %v", err)
		}
		w.loaded.Store(false)
	}
	if err := w.backend.Load(modelPath, opts); err != nil {
		log.Printf("asr: load %q failed: %v", modelPath, err)
		return
	}
	w.modelPath = modelPath
	w.loaded.Store(true)
	log.Printf("asr: model loaded from %q", modelPath)
}

func (w *Worker) handleUnloadEngine() {
	if !w.loaded.Load() {
		return
	}
	if err := w.backend.Close(); err != nil {
		log.Printf("asr: unload (non-fatal): %v", err)
	}
	w.loaded.Store(false)
	log.Printf("asr: model unloaded")
}

func (w *Worker) handleJob(cmd command) {
	job := cmd.job
	if !w.loaded.Load() {
		log.Printf("asr: job %v arrived with model unloaded — emitting empty result", job.Key())
		w.emit(audio.Result{SequenceID: job.SequenceID, ChunkID: job.ChunkID, IsFinal: job.IsFinal})
		return
	}

	t0 := time.Now()
	buf := job.Buffer.PadToWhisperMin()
	pcm := make([]float32, len(buf.Samples))
	copy(pcm, buf.Samples)
	dsp.Process(pcm, cmd.dspCfg, cmd.sampleRate)
	preprocessMs := time.Since(t0).Seconds() * 1000

	t1 := time.Now()
	text, err := w.backend.Transcribe(pcm)
	transcribeMs := time.Since(t1).Seconds() * 1000
	totalMs := time.Since(t0).Seconds() * 1000
	durationSecs := buf.DurationMs() / 1000
	rtf := 0.0
	if durationSecs > 0 {
		rtf = (totalMs / 1000) / durationSecs
	}

	log.Printf("asr: job %v duration=%.2fs preprocess=%.1fms transcribe=%.1fms total=%.1fms rtf=%.3f",
		job.Key(), durationSecs, preprocessMs, transcribeMs, totalMs, rtf)

	if err != nil {
		log.Printf("asr: transcription error for %v: %v", job.Key(), err)
		w.emit(audio.Result{SequenceID: job.SequenceID, ChunkID: job.ChunkID, IsFinal: job.IsFinal, DurationSecs: durationSecs})
		return
	}

	text = trimSpace(text)
	if isHallucination(text) {
		log.Printf("asr: hallucination tag %q for %v — skipping", text, job.Key())
		text = ""
	}

	w.emit(audio.Result{Text: text, SequenceID: job.SequenceID, ChunkID: job.ChunkID, IsFinal: job.IsFinal, DurationSecs: durationSecs})
}

func (w *Worker) emit(r audio.Result) {
	w.results <- r
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\n' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\n' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// isHallucination reports whether text is a known whisper.cpp
// hallucination tag produced during silence or noise.
func isHallucination(s string) bool {
	if s == "" {
		return false
	}
	tags := []string{
		"[BLANK_AUDIO]", "[blank_audio]",
		"(Music)", "(music)", "[MUSIC]", "[Music]",
		"(noise)", "(Noise)",
		"(clapping)", "(Applause)",
		"[silence]",
	}
	for _, tag := range tags {
		if s == tag {
			return true
		}
	}
	return len(s) > 2 && ((s[0] == '[' && s[len(s)-1] == ']') || (s[0] == '(' && s[len(s)-1] == ')'))
}
