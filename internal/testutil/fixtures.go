package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/roach88/inventario/internal/model"
)

// PNG returns an encoded w x h PNG filled with one color.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 34, G: 139, B: 34, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// RowWithD returns a row template with only the diameter set.
func RowWithD(d float64) model.Row {
	return model.Row{D: model.Float(d)}
}

// ScriptedPrompter answers confirmation questions from a fixed script and
// records every question asked. When the script runs out it answers
// Default.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ScriptedPrompter struct {
	mu        sync.Mutex
	answers   []bool
	Default   bool
	questions []string
}

// NewScriptedPrompter creates a prompter that replies with answers in order.
func NewScriptedPrompter(answers ...bool) *ScriptedPrompter {
	return &ScriptedPrompter{answers: answers}
}

// Confirm implements store.Prompter.
func (p *ScriptedPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, question)
	if len(p.answers) == 0 {
		return p.Default, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

// Questions returns the questions asked so far.
func (p *ScriptedPrompter) Questions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.questions...)
}

// MemoryDownloader keeps downloaded files in memory.
//
// Thread-safety: safe for concurrent use via internal mutex.
type MemoryDownloader struct {
	mu    sync.Mutex
	files map[string][]byte
	order []string
}

// NewMemoryDownloader creates an empty downloader.
func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{files: make(map[string][]byte)}
}

// Download implements export.Downloader.
func (d *MemoryDownloader) Download(_ context.Context, name string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[name]; !ok {
		d.order = append(d.order, name)
	}
	d.files[name] = append([]byte(nil), data...)
	return nil
}

// File returns a downloaded file by name.
func (d *MemoryDownloader) File(name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[name]
	return data, ok
}

// Names returns the downloaded file names in first-download order.
func (d *MemoryDownloader) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}
