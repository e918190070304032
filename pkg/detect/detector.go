// Package detect provides checkbox symbol detection on webcam frames.
package detect

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// Symbol classes produced by the checkbox model, in model output order.
var Classes = []string{
	"NOT_STARTED",
	"IN_PROGRESS",
	"COMPLETED",
	"MEETING",
	"TEXT_AREA",
}

// ClassTextArea marks detected handwriting regions. It is drawn on the HUD
// but excluded from stability checks and status ordering.
const ClassTextArea = "TEXT_AREA"

// Detection represents one detected status symbol in a frame.
type Detection struct {
	Box        image.Rectangle // Pixel coordinates in the frame
	Class      string          // One of Classes
	Confidence float64         // 0-1
}

// Center returns the center point of the bounding box.
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.Min.X+d.Box.Max.X) / 2, float64(d.Box.Min.Y+d.Box.Max.Y) / 2
}

// IsSymbol reports whether the detection is a status symbol (not a text area).
func (d Detection) IsSymbol() bool {
	return d.Class != ClassTextArea
}

// Detector is the interface for symbol detection backends.
type Detector interface {
	// Detect finds status symbols in the frame
	Detect(img gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// StatusOrder returns the class labels of status symbols sorted top to
// bottom, mirroring the reading order of the page. Text areas and
// detections below minConfidence are skipped.
func StatusOrder(dets []Detection, minConfidence float64) []string {
	type entry struct {
		class   string
		yCenter float64
	}

	entries := make([]entry, 0, len(dets))
	for _, d := range dets {
		if !d.IsSymbol() || d.Confidence < minConfidence {
			continue
		}
		_, cy := d.Center()
		entries = append(entries, entry{class: d.Class, yCenter: cy})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].yCenter < entries[j].yCenter
	})

	order := make([]string, len(entries))
	for i, e := range entries {
		order[i] = e.class
	}
	return order
}

// FilterSymbols returns the status symbols at or above the confidence floor.
func FilterSymbols(dets []Detection, floor float64) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.IsSymbol() && d.Confidence >= floor {
			out = append(out, d)
		}
	}
	return out
}
