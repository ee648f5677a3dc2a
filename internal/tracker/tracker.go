// Package tracker implements the result tracker: it holds pending
// job keys and completed results, and drains them in an order and
// dedup discipline appropriate to streaming or non-streaming consumers.
package tracker

import (
	"log"
	"sort"
	"strings"

	"github.com/voxcore/voxd/internal/audio"
)

// Mode selects the draining discipline.
type Mode int

const (
	// Streaming drains every completed result in (sequence_id, chunk_id)
	// order and textually de-duplicates against a rolling suffix.
	Streaming Mode = iota
	// Ordered drains only while (next_output_id, 0) is present.
	Ordered
)

const (
	pendingBackpressureThreshold = 3
	maxDedupPrefixWords          = 10
	suffixWindow                 = 50
)

// Tracker is the tracker state machine for one active session.
type Tracker struct {
	mode Mode

	pending   map[audio.Key]struct{}
	completed map[audio.Key]audio.Result

	lastTextSuffix string
	nextOutputID   uint64
}

// New creates a Tracker in the given mode.
func New(mode Mode) *Tracker {
	return &Tracker{
		mode:      mode,
		pending:   make(map[audio.Key]struct{}),
		completed: make(map[audio.Key]audio.Result),
	}
}

// AddPending records a job as submitted but not yet completed.
func (t *Tracker) AddPending(key audio.Key) {
	t.pending[key] = struct{}{}
	if len(t.pending) >= pendingBackpressureThreshold {
		log.Printf("tracker: %d jobs pending — consider a larger chunk interval", len(t.pending))
	}
}

// AddResult records a worker result, moving its key from pending to
// completed. pending ∪ keys(completed) is always exactly the set of
// jobs submitted but not yet emitted.
func (t *Tracker) AddResult(r audio.Result) {
	key := r.Key()
	delete(t.pending, key)
	t.completed[key] = r
}

// PendingCount reports the current queue depth for status reporting.
func (t *Tracker) PendingCount() int { return len(t.pending) }

// ResetDedup clears the suffix-dedup state and, for ordered mode, the
// output cursor. Called at the start of every new recording session.
func (t *Tracker) ResetDedup() {
	t.lastTextSuffix = ""
	t.nextOutputID = 0
}

// TakeReady drains whatever is ready to emit given the tracker's mode.
func (t *Tracker) TakeReady() []audio.Result {
	switch t.mode {
	case Ordered:
		return t.takeReadyOrdered()
	default:
		return t.takeReadyStreaming()
	}
}

func (t *Tracker) takeReadyStreaming() []audio.Result {
	if len(t.completed) == 0 {
		return nil
	}
	keys := make([]audio.Key, 0, len(t.completed))
	for k := range t.completed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SequenceID != keys[j].SequenceID {
			return keys[i].SequenceID < keys[j].SequenceID
		}
		return keys[i].ChunkID < keys[j].ChunkID
	})

	out := make([]audio.Result, 0, len(keys))
	for _, k := range keys {
		r := t.completed[k]
		delete(t.completed, k)
		r.Text = t.dedupAgainstSuffix(r.Text)
		out = append(out, r)
	}
	return out
}

func (t *Tracker) takeReadyOrdered() []audio.Result {
	var out []audio.Result
	for {
		key := audio.Key{SequenceID: t.nextOutputID, ChunkID: 0}
		r, ok := t.completed[key]
		if !ok {
			break
		}
		delete(t.completed, key)
		out = append(out, r)
		t.nextOutputID++
	}
	return out
}

// dedupAgainstSuffix applies the suffix-overlap trim: find the largest
// word-prefix of text (up to 10 words) that already appears as a
// substring of lastTextSuffix, and emit only the remainder.
func (t *Tracker) dedupAgainstSuffix(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	limit := len(words)
	if limit > maxDedupPrefixWords {
		limit = maxDedupPrefixWords
	}

	kStar := 0
	for k := limit; k >= 1; k-- {
		prefix := strings.Join(words[:k], " ")
		if strings.Contains(t.lastTextSuffix, prefix) {
			kStar = k
			break
		}
	}

	emitted := strings.Join(words[kStar:], " ")

	if len(emitted) > 10 {
		if len(emitted) > suffixWindow {
			t.lastTextSuffix = emitted[len(emitted)-suffixWindow:]
		} else {
			t.lastTextSuffix = emitted
		}
	}

	return emitted
}
