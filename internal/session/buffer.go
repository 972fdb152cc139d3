package session

import (
	"log"
	"sync"

	"github.com/stridelab/runtracker-go/internal/models"
)

// DefaultFlushThreshold is the buffered-reading count that triggers a batch write
const DefaultFlushThreshold = 10

// ReadingBuffer accumulates readings and flushes them as a single batch when
// the threshold is reached or the session ends. The buffer is cleared only
// after a confirmed successful write, so a failed flush keeps every
// unwritten reading for the next attempt.
type ReadingBuffer struct {
	mu        sync.Mutex
	readings  []models.SensorReading
	threshold int
	store     ReadingStore
}

// NewReadingBuffer creates a buffer flushing to the given store
func NewReadingBuffer(store ReadingStore, threshold int) *ReadingBuffer {
	if threshold < 1 {
		threshold = DefaultFlushThreshold
	}
	return &ReadingBuffer{
		threshold: threshold,
		store:     store,
	}
}

// Add buffers one reading, flushing when the threshold is reached. Flush
// failures are logged, never surfaced to the sensor path: the readings stay
// buffered and ride along with the next flush.
func (b *ReadingBuffer) Add(r models.SensorReading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.readings = append(b.readings, r)
	if len(b.readings) >= b.threshold {
		if err := b.flushLocked(); err != nil {
			log.Printf("Reading buffer flush failed (%d buffered, will retry): %v", len(b.readings), err)
		}
	}
}

// Flush writes all buffered readings now. Called at session end.
func (b *ReadingBuffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// Len returns the number of unwritten readings
func (b *ReadingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Clear drops all buffered readings without writing them
func (b *ReadingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readings = nil
}

// flushLocked does copy-then-write-then-clear; the clear happens only after
// the batch insert reports success. Caller holds b.mu.
func (b *ReadingBuffer) flushLocked() error {
	if len(b.readings) == 0 {
		return nil
	}

	batch := make([]models.SensorReading, len(b.readings))
	copy(batch, b.readings)

	if err := b.store.BatchInsert(batch); err != nil {
		return err
	}

	b.readings = b.readings[:0]
	return nil
}
