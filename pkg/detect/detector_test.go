package detect

import (
	"image"
	"reflect"
	"testing"
)

func det(class string, y int, conf float64) Detection {
	return Detection{
		Box:        image.Rect(40, y, 80, y+40),
		Class:      class,
		Confidence: conf,
	}
}

func TestStatusOrder_TopToBottom(t *testing.T) {
	// Deliberately out of order, with a text area mixed in
	dets := []Detection{
		det("COMPLETED", 300, 0.9),
		det("NOT_STARTED", 100, 0.9),
		det(ClassTextArea, 150, 0.9),
		det("IN_PROGRESS", 200, 0.9),
	}

	got := StatusOrder(dets, 0.3)
	want := []string{"NOT_STARTED", "IN_PROGRESS", "COMPLETED"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStatusOrder_ConfidenceFloor(t *testing.T) {
	dets := []Detection{
		det("NOT_STARTED", 100, 0.9),
		det("COMPLETED", 200, 0.1),
	}

	got := StatusOrder(dets, 0.3)
	if len(got) != 1 || got[0] != "NOT_STARTED" {
		t.Errorf("low-confidence detection not dropped: %v", got)
	}
}

func TestFilterSymbols(t *testing.T) {
	dets := []Detection{
		det("NOT_STARTED", 100, 0.9),
		det(ClassTextArea, 150, 0.95),
		det("MEETING", 200, 0.2),
	}

	got := FilterSymbols(dets, 0.3)
	if len(got) != 1 || got[0].Class != "NOT_STARTED" {
		t.Errorf("unexpected filtered set: %v", got)
	}
}

func TestDetection_Center(t *testing.T) {
	d := Detection{Box: image.Rect(10, 20, 50, 60)}
	x, y := d.Center()
	if x != 30 || y != 40 {
		t.Errorf("center (%v, %v), want (30, 40)", x, y)
	}
}
