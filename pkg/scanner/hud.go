package scanner

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"taskcam/pkg/detect"
	"taskcam/pkg/stability"
)

// Per-class box colors for the preview window.
var classColors = map[string]color.RGBA{
	"NOT_STARTED": {R: 255, A: 255},
	"IN_PROGRESS": {R: 255, G: 165, A: 255},
	"COMPLETED":   {G: 255, A: 255},
	"MEETING":     {G: 128, B: 255, A: 255},
	"TEXT_AREA":   {R: 160, G: 32, B: 240, A: 255},
}

var hudWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// drawHUD overlays detection boxes and scanner state onto the frame.
func drawHUD(img *gocv.Mat, dets []detect.Detection, snap stability.Snapshot, turbo bool, fps float64) {
	for _, d := range dets {
		c, ok := classColors[d.Class]
		if !ok {
			c = hudWhite
		}
		gocv.Rectangle(img, d.Box, c, 2)
		label := fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
		gocv.PutText(img, label, image.Pt(d.Box.Min.X, d.Box.Min.Y-6),
			gocv.FontHersheySimplex, 0.45, c, 1)
	}

	mode := "full"
	if turbo {
		mode = "turbo"
	}
	status := fmt.Sprintf("%s  stable %d/%d  symbols %d  %s  %.1f fps",
		snap.State, snap.StableRun, snap.StableFrames, len(dets), mode, fps)
	gocv.PutText(img, status, image.Pt(10, 25),
		gocv.FontHersheySimplex, 0.55, hudWhite, 1)
}
