// Package supervisor implements the event loop that owns every
// channel in the pipeline and sequences the other components: a single
// cooperative scheduler awaiting whichever of hotkey event, IPC request,
// worker result, or chunk-interval tick becomes ready first.
package supervisor

import (
	"context"
	"log"
	"time"

	"github.com/voxcore/voxd/internal/asr"
	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/chunk"
	"github.com/voxcore/voxd/internal/config"
	"github.com/voxcore/voxd/internal/control"
	"github.com/voxcore/voxd/internal/correct"
	"github.com/voxcore/voxd/internal/dsp"
	"github.com/voxcore/voxd/internal/hotkey"
	"github.com/voxcore/voxd/internal/output"
	"github.com/voxcore/voxd/internal/ring"
	"github.com/voxcore/voxd/internal/tracker"
	"github.com/voxcore/voxd/internal/vocab"
)

const maxHistoryItems = 200

// engine is the subset of *asr.Worker the supervisor drives. It exists
// so tests can inject a fake worker without linking the real whisper.cpp
// bindings.
type engine interface {
	IsLoaded() bool
	LoadEngine(modelPath string, opts asr.LoadOptions)
	UnloadEngine()
	SubmitJob(job audio.Job, cfg dsp.Config, sampleRate int)
	Stop()
}

// Options bundles every sub-component the supervisor sequences. All
// fields are required except Corrector, which is nil when correction is
// disabled.
type Options struct {
	Ring       *ring.Buffer
	Chunker    *chunk.Chunker
	AsrWorker  engine
	AsrResults chan audio.Result

	Vocabulary *vocab.Vocabulary
	Corrector  *correct.Corrector
	Output     *output.Sink

	Config        config.Config
	ConfigService *config.Service

	DeviceLost chan error
	Version    string
}

// Supervisor is the single owner of recording-session state, the
// tracker, and the status snapshot. Every field below this point is
// touched only from the Run goroutine; Handler methods cross over via
// the request/reply channel so concurrent IPC connections never race
// with the loop.
type Supervisor struct {
	ring       *ring.Buffer
	chunker    *chunk.Chunker
	asrWorker  engine
	asrResults chan audio.Result

	vocabulary *vocab.Vocabulary
	corrector  *correct.Corrector
	output     *output.Sink

	cfg        config.Config
	configSvc  *config.Service
	deviceLost chan error
	version    string

	hotkeyEvents chan hotkey.Event
	requests     chan request

	session          *chunk.Session
	tracker          *tracker.Tracker
	recordingStarted time.Time
	modelName        string

	history       []control.HistoryItem
	nextHistoryID int64

	server *control.Server
}

// New constructs a Supervisor. Call SetServer once the control.Server
// has been built (it needs the Supervisor as its Handler, so the two
// are wired together after both exist).
func New(opts Options) *Supervisor {
	mode := tracker.Streaming
	return &Supervisor{
		ring:       opts.Ring,
		chunker:    opts.Chunker,
		asrWorker:  opts.AsrWorker,
		asrResults: opts.AsrResults,
		vocabulary: opts.Vocabulary,
		corrector:  opts.Corrector,
		output:     opts.Output,
		cfg:        opts.Config,
		configSvc:  opts.ConfigService,
		deviceLost: opts.DeviceLost,
		version:    opts.Version,

		hotkeyEvents: make(chan hotkey.Event, 8),
		requests:     make(chan request, 8),

		tracker:   tracker.New(mode),
		modelName: opts.Config.Transcription.Model,
	}
}

// SetServer attaches the control.Server used for event broadcast.
func (s *Supervisor) SetServer(server *control.Server) {
	s.server = server
}

// OnHotkeyEvent is passed to hotkey.Source.Start as the edge callback.
// It never blocks: a full channel means the loop is behind, and the
// edge is dropped rather than stalling the OS-level hotkey listener.
func (s *Supervisor) OnHotkeyEvent(e hotkey.Event) {
	select {
	case s.hotkeyEvents <- e:
	default:
		log.Printf("supervisor: hotkey event channel full, dropping edge")
	}
}

// Run is the cooperative scheduler. It blocks until a Stop request is
// processed or ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.Queue.ChunkIntervalSecs * float64(time.Second))
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("supervisor: event loop started (chunk_interval=%s)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("supervisor: context cancelled, shutting down")
			return

		case e := <-s.hotkeyEvents:
			s.handleHotkeyEvent(e)

		case req := <-s.requests:
			stop := s.handleRequest(req)
			if stop {
				return
			}

		case result := <-s.asrResults:
			s.handleResult(result)

		case err := <-s.deviceLost:
			s.handleDeviceLost(err)

		case <-ticker.C:
			s.handleTick()
		}
	}
}

func (s *Supervisor) handleHotkeyEvent(e hotkey.Event) {
	switch s.cfg.Hotkey.Mode {
	case "toggle":
		if e == hotkey.Pressed {
			s.toggleRecording()
		}
	default: // push_to_talk
		switch e {
		case hotkey.Pressed:
			s.startRecording()
		case hotkey.Released:
			s.stopRecording()
		}
	}
}

func (s *Supervisor) handleTick() {
	if s.session == nil {
		return
	}
	job, level, ok := s.chunker.Tick(s.session)
	s.broadcastEvent(control.Event{
		Type:      control.EventAudioLevel,
		RMSDb:     level.RMSDb,
		PeakDb:    level.PeakDb,
		VADActive: level.VADActive,
	})
	if !ok {
		return
	}
	s.submitJob(job)
}

func (s *Supervisor) handleDeviceLost(err error) {
	log.Printf("supervisor: %v", err)
	if s.session != nil {
		s.session = nil
		s.broadcastState(control.StateIdle)
	}
	s.broadcastEvent(control.Event{Type: control.EventError, Code: "device_lost", Message: err.Error()})
}

func (s *Supervisor) startRecording() {
	if s.session != nil {
		return
	}
	if !s.asrWorker.IsLoaded() {
		s.asrWorker.LoadEngine(s.cfg.Transcription.Model, s.loadOptions())
	}
	mark := s.ring.Mark()
	s.session = chunk.NewSession(mark)
	s.tracker.ResetDedup()
	s.chunker.ResetVAD()
	s.recordingStarted = time.Now()

	log.Printf("supervisor: recording started (sequence_id=%d)", mark.SequenceID)
	s.broadcastState(control.StateRecording)
	s.broadcastEvent(control.Event{
		Type:        control.EventRecordingStarted,
		RecordingID: mark.SequenceID,
		Timestamp:   s.recordingStarted.UTC().Format(time.RFC3339),
	})
}

func (s *Supervisor) stopRecording() {
	if s.session == nil {
		return
	}
	if job, ok := s.chunker.Final(s.session); ok {
		s.submitJob(job)
	}
	duration := time.Since(s.recordingStarted).Seconds()
	seqID := s.session.Mark.SequenceID
	s.session = nil

	log.Printf("supervisor: recording stopped (sequence_id=%d, %.1fs)", seqID, duration)
	s.broadcastState(control.StateIdle)
	s.broadcastEvent(control.Event{
		Type:         control.EventRecordingStopped,
		RecordingID:  seqID,
		DurationSecs: duration,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Supervisor) toggleRecording() {
	if s.session != nil {
		s.stopRecording()
	} else {
		s.startRecording()
	}
}

func (s *Supervisor) submitJob(job audio.Job) {
	s.tracker.AddPending(job.Key())
	s.broadcastEvent(control.Event{
		Type:        control.EventTranscriptionStarted,
		RecordingID: job.SequenceID,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	s.asrWorker.SubmitJob(job, dspConfigFrom(s.cfg.Audio), audio.SampleRate)
}

func (s *Supervisor) handleResult(result audio.Result) {
	s.tracker.AddResult(result)
	for _, r := range s.tracker.TakeReady() {
		s.emit(r)
	}
}

// emit runs a completed result through vocabulary find/replace, then the
// optional LLM corrector, then the output sink, in that order.
func (s *Supervisor) emit(r audio.Result) {
	text := s.vocabulary.Apply(r.Text)
	if text == "" {
		return
	}

	corrected := text
	wasCorrected := false
	if s.corrector != nil {
		timeout := time.Duration(s.cfg.Correction.TimeoutSecs * float64(time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		corrected, wasCorrected = s.corrector.Correct(ctx, text)
		cancel()
		if !wasCorrected {
			log.Printf("supervisor: warning: LLM correction not applied for sequence_id=%d chunk_id=%d, emitting uncorrected text", r.SequenceID, r.ChunkID)
		}
	}

	s.output.Send(corrected, func() {
		log.Printf("supervisor: both output sinks failed for sequence_id=%d chunk_id=%d", r.SequenceID, r.ChunkID)
	})
	s.recordHistory(corrected, wasCorrected, r.DurationSecs)
	s.broadcastEvent(control.Event{
		Type:         control.EventTranscriptionComplete,
		Text:         corrected,
		DurationSecs: r.DurationSecs,
		LLMCorrected: wasCorrected,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Supervisor) recordHistory(text string, llmCorrected bool, durationSecs float64) {
	item := control.HistoryItem{
		ID:           s.nextHistoryID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Text:         text,
		DurationSecs: durationSecs,
		LLMCorrected: llmCorrected,
	}
	s.nextHistoryID++
	s.history = append(s.history, item)
	if len(s.history) > maxHistoryItems {
		s.history = s.history[len(s.history)-maxHistoryItems:]
	}
}

func (s *Supervisor) broadcastState(state control.DaemonState) {
	s.broadcastEvent(control.Event{Type: control.EventStateChanged, State: state})
}

func (s *Supervisor) broadcastEvent(e control.Event) {
	if s.server != nil {
		s.server.Broadcast(e)
	}
}

// loadOptions builds the asr.LoadOptions the ASR worker applies to its
// whisper context from the current transcription config. Device is
// deliberately not consulted here — see the LoadOptions doc comment.
func (s *Supervisor) loadOptions() asr.LoadOptions {
	return asr.LoadOptions{
		Language:  s.cfg.Transcription.Language,
		Translate: s.cfg.Transcription.Translate,
	}
}

// dspConfigFrom converts the TOML-facing audio config into the runtime
// dsp.Config the ASR worker's preprocessing pipeline consumes. The two
// shapes are kept distinct because one is a serialization surface and
// the other is purely structural; this is their single conversion
// point.
func dspConfigFrom(a config.AudioConfig) dsp.Config {
	return dsp.Config{
		Preprocessing: a.Preprocessing,
		NoiseReduction: dsp.NoiseReductionConfig{
			Enabled: a.NoiseReduction.Enabled, Strength: a.NoiseReduction.Strength,
		},
		Normalization: dsp.NormalizationConfig{
			Enabled: a.Normalization.Enabled, TargetDB: a.Normalization.TargetDB,
		},
		Compression: dsp.CompressionConfig{
			Enabled: a.Compression.Enabled, ThresholdDB: a.Compression.ThresholdDB, Ratio: a.Compression.Ratio,
			AttackMs: a.Compression.AttackMs, ReleaseMs: a.Compression.ReleaseMs, MakeupGainDB: a.Compression.MakeupGainDB,
		},
		Limiter: dsp.LimiterConfig{
			Enabled: a.Limiter.Enabled, CeilingDB: a.Limiter.CeilingDB, ReleaseMs: a.Limiter.ReleaseMs,
		},
	}
}
