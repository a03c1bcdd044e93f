package offsettable

import (
	"errors"
	"sync"

	"dwmhost/coloransi"
	"dwmhost/descriptor"

	"github.com/Moonlight-Companies/gologger/logger"
)

// Writer maps the region for writing on the first BeginPass, so that hosts
// which never resolve leave an existing region alone. A region sized for a
// different descriptor table is replaced, not rewritten in place.
type Writer struct {
	path  string
	count int
	log   *logger.Logger

	mu sync.Mutex
	t  *Table
}

// NewWriter returns a Writer for a region of n entries at path.
func NewWriter(path string, n int) *Writer {
	return &Writer{
		path:  path,
		count: n,
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorGreen, coloransi.ColorOrange, "offsettable-w")),
	}
}

// Path returns the region path.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) table() (*Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.t != nil {
		return w.t, nil
	}

	t, err := Create(w.path, w.count)
	if errors.Is(err, ErrShapeMismatch) {
		w.log.Infoln("Replacing offset region", w.path, "for", w.count, "entries")
		t, err = Replace(w.path, w.count)
	}
	if err != nil {
		return nil, err
	}
	w.t = t
	return t, nil
}

func (w *Writer) mapped() (*Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.t == nil {
		return nil, ErrClosed
	}
	return w.t, nil
}

// BeginPass maps the region if needed and starts a pass.
func (w *Writer) BeginPass(counts descriptor.Counts, fingerprint uint32) error {
	t, err := w.table()
	if err != nil {
		return err
	}
	return t.BeginPass(counts, fingerprint)
}

func (w *Writer) Set(i int, offset uint64) error {
	t, err := w.mapped()
	if err != nil {
		return err
	}
	return t.Set(i, offset)
}

func (w *Writer) Reset() error {
	t, err := w.mapped()
	if err != nil {
		return err
	}
	return t.Reset()
}

// EndPass publishes the pass and writes it back to the file.
func (w *Writer) EndPass() error {
	t, err := w.mapped()
	if err != nil {
		return err
	}
	if err := t.EndPass(); err != nil {
		return err
	}
	return t.Flush()
}

// Close unmaps the region if it was mapped.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.t == nil {
		return nil
	}
	err := w.t.Close()
	w.t = nil
	return err
}
