// Package control implements the local IPC control surface: a
// newline-delimited JSON protocol over a user-local Unix socket,
// carrying commands, responses, and server-pushed events on the same
// connection.
package control

import "encoding/json"

// Command is a client request. Cmd selects the variant; the remaining
// fields are populated depending on which command it names, mirroring
// the original protocol's internally tagged enum.
type Command struct {
	Cmd string `json:"cmd"`

	// Subscribe
	Events []string `json:"events,omitempty"`

	// HistoryList
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// ConfigGet / ConfigSet
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

const (
	CmdStatus          = "status"
	CmdStop            = "stop"
	CmdLoadModel       = "load_model"
	CmdUnloadModel     = "unload_model"
	CmdStartRecording  = "start_recording"
	CmdStopRecording   = "stop_recording"
	CmdToggleRecording = "toggle_recording"
	CmdSubscribe       = "subscribe"
	CmdUnsubscribe     = "unsubscribe"
	CmdHistoryList     = "history_list"
	CmdConfigGet       = "config_get"
	CmdConfigSet       = "config_set"
	CmdPing            = "ping"
)

const defaultHistoryLimit = 20

// Response is sent once per request, on the same connection.
type Response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// DaemonState mirrors the supervisor's coarse-grained status.
type DaemonState string

const (
	StateIdle       DaemonState = "idle"
	StateRecording  DaemonState = "recording"
	StateProcessing DaemonState = "processing"
)

// DaemonStatus is the snapshot returned by the status command. Field
// names match the documented wire contract exactly (running, recording,
// queue_depth, model, model_loaded, version); the rest are additive
// fields clients that only know the documented contract can ignore.
type DaemonStatus struct {
	Running           bool     `json:"running"`
	Recording         bool     `json:"recording"`
	RecordingDuration *float64 `json:"recording_duration,omitempty"`
	QueueDepth        int      `json:"queue_depth"`
	Model             string   `json:"model"`
	ModelLoaded       bool     `json:"model_loaded"`
	InputDevice       string   `json:"input_device,omitempty"`
	OutputsEnabled    []string `json:"outputs_enabled,omitempty"`
	Version           string   `json:"version"`
}

// HistoryItem is one past transcription, used by history_list.
type HistoryItem struct {
	ID           int64   `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Text         string  `json:"text"`
	DurationSecs float64 `json:"duration_secs"`
	LLMCorrected bool    `json:"llm_corrected"`
}

func okResponse(data any) Response {
	if data == nil {
		return Response{OK: true}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Data: raw}
}

func errResponse(msg string) Response {
	return Response{OK: false, Error: msg}
}

// Event is pushed from the daemon to subscribed clients, distinguished
// by the Type tag. Only the fields relevant to Type are populated.
type Event struct {
	Type string `json:"type"`

	// recording_started / recording_stopped
	RecordingID  uint64  `json:"recording_id,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	DurationSecs float64 `json:"duration_secs,omitempty"`

	// audio_level
	RMSDb     float32 `json:"rms_db,omitempty"`
	PeakDb    float32 `json:"peak_db,omitempty"`
	VADActive bool    `json:"vad_active,omitempty"`

	// transcription_complete
	Text         string `json:"text,omitempty"`
	LLMCorrected bool   `json:"llm_corrected,omitempty"`

	// state_changed
	State DaemonState `json:"state,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// model_progress
	Model    string  `json:"model,omitempty"`
	Progress float32 `json:"progress,omitempty"`
	Status   string  `json:"status,omitempty"`
}

const (
	EventRecordingStarted      = "recording_started"
	EventRecordingStopped      = "recording_stopped"
	EventAudioLevel            = "audio_level"
	EventTranscriptionStarted  = "transcription_started"
	EventTranscriptionComplete = "transcription_complete"
	EventStateChanged          = "state_changed"
	EventError                 = "error"
	EventModelProgress         = "model_progress"
	EventShutdown              = "shutdown"
)
