package utils

import (
	"iot-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of series points.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type RingBuffer struct {
	data     []models.MSeriesPoint
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &RingBuffer{
		data:     make([]models.MSeriesPoint, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a point, overwriting the oldest one when full
func (rb *RingBuffer) Append(point models.MSeriesPoint) {
	rb.data[rb.index] = point
	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n most recent points in insertion order
func (rb *RingBuffer) GetLatest(n int) []models.MSeriesPoint {
	if rb.size == 0 || n <= 0 {
		return []models.MSeriesPoint{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MSeriesPoint, count)

	// Latest data is at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []models.MSeriesPoint {
	if rb.size == 0 {
		return []models.MSeriesPoint{}
	}

	result := make([]models.MSeriesPoint, rb.size)

	var startIdx int
	if rb.size == rb.capacity {
		// Buffer is full, oldest is at current index (wrap-around)
		startIdx = rb.index
	}

	for i := 0; i < rb.size; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}
