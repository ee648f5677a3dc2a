package chunk

import (
	"testing"

	"github.com/voxcore/voxd/internal/audio"
	"github.com/voxcore/voxd/internal/ring"
)

func TestTickProducesNoJobBeforeMinChunk(t *testing.T) {
	buf := ring.New(10.0, audio.SampleRate)
	c := New(buf, 16000, 8000, audio.SampleRate, "low")

	mark := buf.Mark()
	session := NewSession(mark)

	buf.Push(make([]float32, 1000))

	_, _, ok := c.Tick(session)
	if ok {
		t.Fatal("expected no job before min_chunk_samples threshold")
	}
}

func TestTickProducesJobAndAppliesOverlap(t *testing.T) {
	buf := ring.New(10.0, audio.SampleRate)
	c := New(buf, 16000, 8000, audio.SampleRate, "low")

	mark := buf.Mark()
	session := NewSession(mark)

	buf.Push(make([]float32, 20000))

	job, level, ok := c.Tick(session)
	if !ok {
		t.Fatal("expected a job once min_chunk_samples reached")
	}
	if level.VADActive {
		t.Fatal("expected silence (zero-valued samples) to not register as speech")
	}
	if job.IsFinal {
		t.Fatal("non-final tick produced is_final job")
	}
	if job.SequenceID != mark.SequenceID {
		t.Fatalf("sequence id = %d, want %d", job.SequenceID, mark.SequenceID)
	}
	if job.ChunkID != 0 {
		t.Fatalf("chunk id = %d, want 0", job.ChunkID)
	}

	// After the tick, last_chunk_position should have rewound by the
	// overlap amount so the next chunk shares ~0.5s of audio.
	if session.LastChunkPosition != 20000-8000 {
		t.Fatalf("last_chunk_position = %d, want %d", session.LastChunkPosition, 20000-8000)
	}
}

func TestFinalDiscardsShortTail(t *testing.T) {
	buf := ring.New(10.0, audio.SampleRate)
	c := New(buf, 16000, 8000, audio.SampleRate, "low")

	mark := buf.Mark()
	session := NewSession(mark)

	buf.Push(make([]float32, 100)) // well under MIN_DURATION at 16kHz

	_, ok := c.Final(session)
	if ok {
		t.Fatal("expected final tail below MIN_DURATION to be discarded")
	}
}

func TestFinalEmitsRemainingTail(t *testing.T) {
	buf := ring.New(10.0, audio.SampleRate)
	c := New(buf, 16000, 8000, audio.SampleRate, "low")

	mark := buf.Mark()
	session := NewSession(mark)

	buf.Push(make([]float32, 4000)) // 250ms, above MIN_DURATION

	job, ok := c.Final(session)
	if !ok {
		t.Fatal("expected final job for tail above MIN_DURATION")
	}
	if !job.IsFinal {
		t.Fatal("expected IsFinal = true")
	}
}
