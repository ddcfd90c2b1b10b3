package utils

import (
	"fmt"
	"testing"

	"iot-observer/src/models"
)

func point(i int) models.MSeriesPoint {
	return models.MSeriesPoint{Value: float64(i), DateTime: fmt.Sprintf("2026-08-31T00:00:%02dZ", i)}
}

func TestRingBufferAppendAndGetAll(t *testing.T) {
	rb := NewRingBuffer(3)

	if rb.Size() != 0 {
		t.Fatalf("new buffer should be empty, got size %d", rb.Size())
	}

	rb.Append(point(1))
	rb.Append(point(2))

	all := rb.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 points, got %d", len(all))
	}
	if all[0].Value != 1 || all[1].Value != 2 {
		t.Errorf("expected insertion order [1 2], got [%v %v]", all[0].Value, all[1].Value)
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Append(point(i))
	}

	if rb.Size() != 3 {
		t.Fatalf("expected size capped at 3, got %d", rb.Size())
	}

	all := rb.GetAll()
	want := []float64{3, 4, 5}
	for i, w := range want {
		if all[i].Value != w {
			t.Errorf("position %d: expected %v, got %v", i, w, all[i].Value)
		}
	}
}

func TestRingBufferGetLatest(t *testing.T) {
	rb := NewRingBuffer(4)
	for i := 1; i <= 6; i++ {
		rb.Append(point(i))
	}

	latest := rb.GetLatest(2)
	if len(latest) != 2 {
		t.Fatalf("expected 2 points, got %d", len(latest))
	}
	if latest[0].Value != 5 || latest[1].Value != 6 {
		t.Errorf("expected [5 6], got [%v %v]", latest[0].Value, latest[1].Value)
	}

	// Asking for more than held returns everything
	all := rb.GetLatest(10)
	if len(all) != 4 {
		t.Errorf("expected 4 points, got %d", len(all))
	}
}
