// Command voxd is the background voice-to-text daemon: it wires the
// capture driver, hotkey source, chunker, ASR worker, result tracker,
// vocabulary/correction stages, output sink, and IPC control surface
// together and runs the supervisor's event loop until signalled to stop.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/voxcore/voxd/internal/asr"
	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/capture"
	"github.com/voxcore/voxd/internal/chunk"
	"github.com/voxcore/voxd/internal/config"
	"github.com/voxcore/voxd/internal/control"
	"github.com/voxcore/voxd/internal/correct"
	"github.com/voxcore/voxd/internal/hotkey"
	"github.com/voxcore/voxd/internal/output"
	"github.com/voxcore/voxd/internal/ring"
	"github.com/voxcore/voxd/internal/supervisor"
	"github.com/voxcore/voxd/internal/vocab"
)

const version = "0.1.0"

// initLogging writes to both stdout and ~/.config/voxd/voxd.log so a
// daemon launched headless (via launchd/systemd) still has a log file
// to inspect.
func initLogging() *os.File {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("logging: failed to get home dir: %v", err)
		return nil
	}
	logDir := filepath.Join(home, ".config", "voxd")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("logging: failed to create log dir: %v", err)
		return nil
	}

	logPath := filepath.Join(logDir, "voxd.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.Printf("logging: failed to open log file: %v", err)
		return nil
	}

	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	log.Println("=== voxd started ===")
	return f
}

func main() {
	logFile := initLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	configSvc, err := config.New()
	if err != nil {
		log.Fatalf("fatal: resolve config path: %v", err)
	}
	cfg, err := configSvc.Load()
	if err != nil {
		log.Fatalf("fatal: load config: %v", err)
	}

	buf := ring.New(cfg.Audio.PrebufferDurationSecs, audio.SampleRate)

	deviceLost := make(chan error, 1)
	captureDriver := capture.New(buf, float64(audio.SampleRate))
	captureDriver.OnDeviceLost = func(err error) {
		select {
		case deviceLost <- err:
		default:
		}
	}

	minChunkSamples := uint64(cfg.Queue.ChunkIntervalSecs * float64(audio.SampleRate))
	overlapSamples := uint64(0.5 * float64(audio.SampleRate))
	chunker := chunk.New(buf, minChunkSamples, overlapSamples, audio.SampleRate, cfg.Audio.ResamplingQuality)

	hotkeySource, err := hotkey.New(cfg.Hotkey.Key)
	if err != nil {
		log.Fatalf("fatal: register hotkey %q: %v", cfg.Hotkey.Key, err)
	}

	vocabPath := cfg.Vocabulary.Path
	vocabulary, err := vocab.Load(vocabPath)
	if err != nil {
		log.Fatalf("fatal: load vocabulary %q: %v", vocabPath, err)
	}

	var corrector *correct.Corrector
	if cfg.Correction.Enabled {
		corrector, err = correct.New(correct.Config{
			Enabled:     true,
			Host:        cfg.Correction.EndpointURL,
			Model:       cfg.Correction.Model,
			TimeoutSecs: cfg.Correction.TimeoutSecs,
		})
		if err != nil {
			log.Fatalf("fatal: init correction client: %v", err)
		}
	}

	outputSink := output.New(output.Config{
		Clipboard: cfg.Output.Clipboard,
		Paste:     cfg.Output.Paste,
	}, nil) // no platform paste shim wired; degrades to clipboard

	results := make(chan audio.Result, 16)
	asrWorker := asr.New(results)

	sup := supervisor.New(supervisor.Options{
		Ring:          buf,
		Chunker:       chunker,
		AsrWorker:     asrWorker,
		AsrResults:    results,
		Vocabulary:    vocabulary,
		Corrector:     corrector,
		Output:        outputSink,
		Config:        cfg,
		ConfigService: configSvc,
		DeviceLost:    deviceLost,
		Version:       version,
	})

	socketPath := filepath.Join(filepath.Dir(configSvc.Path()), "voxd.sock")
	server := control.New(socketPath, sup, version)
	sup.SetServer(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := captureDriver.Run(ctx); err != nil {
		log.Fatalf("fatal: start capture: %v", err)
	}
	if err := hotkeySource.Start(ctx, sup.OnHotkeyEvent); err != nil {
		log.Fatalf("fatal: start hotkey source: %v", err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			log.Printf("control: serve exited: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("voxd: received %s, shutting down", sig)
		sup.Stop()
	}()

	sup.Run(ctx)

	hotkeySource.Stop()
	cancel()
	log.Println("=== voxd stopped ===")
}
