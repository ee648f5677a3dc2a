package supervisor

import (
	"time"

	"github.com/voxcore/voxd/internal/config"
	"github.com/voxcore/voxd/internal/control"
)

// request carries one control.Handler call across to the Run goroutine.
// Every Handler method blocks its caller (a per-connection goroutine)
// on reply, so from the IPC client's point of view the call still looks
// synchronous; internally it's just routed through the single-threaded
// loop instead of touching supervisor state directly.
type request struct {
	kind reqKind

	historyLimit  int
	historyOffset int
	configKey     string
	configValue   string

	reply chan response
}

type reqKind int

const (
	reqStatus reqKind = iota
	reqStop
	reqLoadModel
	reqUnloadModel
	reqStartRecording
	reqStopRecording
	reqToggleRecording
	reqHistoryList
	reqConfigGet
	reqConfigSet
)

type response struct {
	status       control.DaemonStatus
	history      []control.HistoryItem
	historyTotal int
	value        string
	err          error
}

func (s *Supervisor) do(req request) response {
	req.reply = make(chan response, 1)
	s.requests <- req
	return <-req.reply
}

// Status implements control.Handler.
func (s *Supervisor) Status() control.DaemonStatus {
	return s.do(request{kind: reqStatus}).status
}

// Stop implements control.Handler. It enqueues shutdown; the request
// handler itself tells Run to return after replying.
func (s *Supervisor) Stop() {
	s.do(request{kind: reqStop})
}

// LoadModel implements control.Handler.
func (s *Supervisor) LoadModel() {
	s.do(request{kind: reqLoadModel})
}

// UnloadModel implements control.Handler.
func (s *Supervisor) UnloadModel() {
	s.do(request{kind: reqUnloadModel})
}

// StartRecording implements control.Handler.
func (s *Supervisor) StartRecording() {
	s.do(request{kind: reqStartRecording})
}

// StopRecording implements control.Handler.
func (s *Supervisor) StopRecording() {
	s.do(request{kind: reqStopRecording})
}

// ToggleRecording implements control.Handler.
func (s *Supervisor) ToggleRecording() {
	s.do(request{kind: reqToggleRecording})
}

// HistoryList implements control.Handler.
func (s *Supervisor) HistoryList(limit, offset int) ([]control.HistoryItem, int) {
	resp := s.do(request{kind: reqHistoryList, historyLimit: limit, historyOffset: offset})
	return resp.history, resp.historyTotal
}

// ConfigGet implements control.Handler.
func (s *Supervisor) ConfigGet(key string) (string, error) {
	resp := s.do(request{kind: reqConfigGet, configKey: key})
	return resp.value, resp.err
}

// ConfigSet implements control.Handler.
func (s *Supervisor) ConfigSet(key, value string) error {
	return s.do(request{kind: reqConfigSet, configKey: key, configValue: value}).err
}

// handleRequest runs on the Run goroutine. It returns true when Run
// should exit after replying (the Stop command).
func (s *Supervisor) handleRequest(req request) bool {
	switch req.kind {
	case reqStatus:
		req.reply <- response{status: s.statusSnapshot()}

	case reqStop:
		req.reply <- response{}
		s.shutdown()
		return true

	case reqLoadModel:
		s.asrWorker.LoadEngine(s.cfg.Transcription.Model, s.loadOptions())
		req.reply <- response{}

	case reqUnloadModel:
		s.asrWorker.UnloadEngine()
		req.reply <- response{}

	case reqStartRecording:
		s.startRecording()
		req.reply <- response{}

	case reqStopRecording:
		s.stopRecording()
		req.reply <- response{}

	case reqToggleRecording:
		s.toggleRecording()
		req.reply <- response{}

	case reqHistoryList:
		items, total := s.historyPage(req.historyLimit, req.historyOffset)
		req.reply <- response{history: items, historyTotal: total}

	case reqConfigGet:
		val, err := s.cfg.GetValue(req.configKey)
		req.reply <- response{value: val, err: err}

	case reqConfigSet:
		err := s.applyConfigSet(req.configKey, req.configValue)
		req.reply <- response{err: err}

	default:
		req.reply <- response{}
	}
	return false
}

func (s *Supervisor) statusSnapshot() control.DaemonStatus {
	status := control.DaemonStatus{
		Running:        true,
		QueueDepth:     s.tracker.PendingCount(),
		Model:          s.modelName,
		ModelLoaded:    s.asrWorker.IsLoaded(),
		OutputsEnabled: outputsEnabled(s.cfg.Output),
		Version:        s.version,
	}
	if s.session != nil {
		status.Recording = true
		d := time.Since(s.recordingStarted).Seconds()
		status.RecordingDuration = &d
	}
	return status
}

func outputsEnabled(o config.OutputConfig) []string {
	var out []string
	if o.Clipboard {
		out = append(out, "clipboard")
	}
	if o.Paste {
		out = append(out, "paste")
	}
	return out
}

func (s *Supervisor) historyPage(limit, offset int) ([]control.HistoryItem, int) {
	total := len(s.history)
	if limit <= 0 {
		limit = 20
	}
	// Most recent first.
	ordered := make([]control.HistoryItem, total)
	for i, item := range s.history {
		ordered[total-1-i] = item
	}
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return ordered[offset:end], total
}

func (s *Supervisor) applyConfigSet(key, value string) error {
	if err := s.cfg.SetValue(key, value); err != nil {
		return err
	}
	if s.configSvc != nil {
		return s.configSvc.Save(s.cfg)
	}
	return nil
}

func (s *Supervisor) shutdown() {
	if s.session != nil {
		s.stopRecording()
	}
	s.asrWorker.Stop()
	s.broadcastEvent(control.Event{Type: control.EventShutdown})
	if s.server != nil {
		s.server.Close() //nolint:errcheck
	}
}
