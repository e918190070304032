package structurer

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"taskcam/internal/log"
)

// Tesseract is the offline fallback engine, used when no Gemini API key is
// configured. It extracts raw text lines and emits them as NOT_STARTED
// tasks: no status mapping, hierarchy or project assignment. Handwriting
// accuracy is poor, so this is strictly a degraded mode for working
// disconnected.
type Tesseract struct {
	languages []string
}

// NewTesseract creates the fallback OCR engine.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	log.Warn("structuring in degraded mode: local OCR only, statuses default to NOT_STARTED")
	return &Tesseract{languages: languages}
}

// Structure extracts text lines from the image as flat NOT_STARTED tasks.
func (t *Tesseract) Structure(ctx context.Context, jpeg []byte) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(jpeg); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	page := linesToPage(text)
	if len(page.Tasks) == 0 {
		return nil, fmt.Errorf("no text recognised on page")
	}
	return page, nil
}

// linesToPage converts raw OCR text into a flat page of NOT_STARTED tasks.
func linesToPage(text string) *Page {
	page := &Page{}
	order := 1
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			// Stray marks and symbol fragments come through as 1-2 chars
			continue
		}
		page.Tasks = append(page.Tasks, Task{
			Name:   line,
			Status: StatusNotStarted,
			Order:  order,
		})
		order++
	}
	return page
}
