// Package offsettable is the resolved-offset table shared between the host and
// the injected extension.
//
// The table lives in a file mapped with shared semantics: every process that
// maps the same path sees the same pages, so the host can publish offsets once
// and the extension, loaded later in another process, reads them without any
// IPC call. Entries are addressed by descriptor index only.
//
// A writer brackets every resolution pass with BeginPass/EndPass. The
// generation counter is odd while a pass is in progress, which lets GetOffset
// detect and retry reads that race a pass.
package offsettable

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"dwmhost/coloransi"
	"dwmhost/descriptor"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/edsrzf/mmap-go"
)

// Table is a mapped offset region.
type Table struct {
	path     string
	count    int
	writable bool
	log      *logger.Logger

	mu   sync.Mutex
	file *os.File
	m    mmap.MMap
}

// Create opens or creates the region at path sized for n entries and maps it
// read-write. A valid region of a different shape is never rewritten in place,
// since other processes may have it mapped; Create returns ErrShapeMismatch
// and the caller decides whether to Replace it.
func Create(path string, n int) (*Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("offset table: negative entry count %d", n)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create region dir: %w", err)
	}

	// #nosec G304 -- region path comes from the host configuration
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open region: %w", err)
	}

	size := RegionSize(n)
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat region: %w", err)
	}
	if count, ok := regionCount(f, st.Size()); ok && (count != n || st.Size() != int64(size)) {
		f.Close()
		return nil, fmt.Errorf("%w: %s holds %d entries, want %d", ErrShapeMismatch, path, count, n)
	}
	if st.Size() != int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("resize region: %w", err)
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map region: %w", err)
	}

	t := &Table{
		path:     path,
		count:    n,
		writable: true,
		file:     f,
		m:        m,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorGreen, coloransi.ColorOrange, "offsettable")),
	}
	if !t.headerMatches() {
		t.log.Infoln("Initializing offset region", path, "for", n, "entries")
		t.initHeader()
	}
	return t, nil
}

// regionCount reads the entry count of a valid region header in f.
func regionCount(f *os.File, size int64) (int, bool) {
	if size < HeaderSize {
		return 0, false
	}
	hdr := make([]byte, HeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return 0, false
	}
	if binary.LittleEndian.Uint32(hdr[offMagic:]) != Magic ||
		binary.LittleEndian.Uint32(hdr[offVersion:]) != LayoutVersion {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(hdr[offCount:])), true
}

// Replace installs a fresh, zeroed region for n entries at path and maps it
// read-write. The new file is renamed over the old one, so processes that
// still map the old region keep reading its pages until they reopen.
func Replace(path string, n int) (*Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("offset table: negative entry count %d", n)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create region dir: %w", err)
	}

	buf := make([]byte, RegionSize(n))
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], LayoutVersion)
	binary.LittleEndian.PutUint32(buf[offCount:], uint32(n))

	tmp := path + ".new"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return nil, fmt.Errorf("write region: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("replace region: %w", err)
	}
	return Create(path, n)
}

// Open maps an existing region read-only and validates its header.
func Open(path string) (*Table, error) {
	// #nosec G304 -- region path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open region: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat region: %w", err)
	}
	if st.Size() < HeaderSize {
		f.Close()
		return nil, ErrTruncated
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map region: %w", err)
	}

	if got := binary.LittleEndian.Uint32(m[offMagic:]); got != Magic {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, got)
	}
	if got := binary.LittleEndian.Uint32(m[offVersion:]); got != LayoutVersion {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, got)
	}
	n := int(binary.LittleEndian.Uint32(m[offCount:]))
	if len(m) < RegionSize(n) {
		m.Unmap()
		f.Close()
		return nil, ErrTruncated
	}

	return &Table{
		path:  path,
		count: n,
		file:  f,
		m:     m,
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorGreen, coloransi.ColorOrange, "offsettable-ro")),
	}, nil
}

func (t *Table) headerMatches() bool {
	return binary.LittleEndian.Uint32(t.m[offMagic:]) == Magic &&
		binary.LittleEndian.Uint32(t.m[offVersion:]) == LayoutVersion &&
		int(binary.LittleEndian.Uint32(t.m[offCount:])) == t.count
}

func (t *Table) initHeader() {
	clear(t.m)
	binary.LittleEndian.PutUint32(t.m[offMagic:], Magic)
	binary.LittleEndian.PutUint32(t.m[offVersion:], LayoutVersion)
	binary.LittleEndian.PutUint32(t.m[offCount:], uint32(t.count))
}

func (t *Table) word(off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&t.m[off]))
}

func (t *Table) entry(i int) *uint64 {
	return t.word(HeaderSize + i*EntrySize)
}

// Path returns the backing file path, which is also the region's name.
func (t *Table) Path() string {
	return t.path
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return t.count
}

// Size returns the mapped size in bytes.
func (t *Table) Size() int {
	return RegionSize(t.count)
}

// Generation returns the pass counter. Odd means a pass is in progress.
func (t *Table) Generation() uint64 {
	return atomic.LoadUint64(t.word(offGeneration))
}

// Fingerprint returns the descriptor table fingerprint recorded by the last pass.
func (t *Table) Fingerprint() uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&t.m[offFingerprint])))
}

// Expected returns the per-module expected counts recorded by the last pass.
func (t *Table) Expected() descriptor.Counts {
	return descriptor.Counts{
		Dwmcore: atomic.LoadUint64(t.word(offExpectedA)),
		UDwm:    atomic.LoadUint64(t.word(offExpectedB)),
	}
}

// BeginPass marks the table as being rewritten, records the expected counts
// and fingerprint, and zeroes every entry.
func (t *Table) BeginPass(counts descriptor.Counts, fingerprint uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(); err != nil {
		return err
	}

	gen := t.word(offGeneration)
	if g := atomic.LoadUint64(gen); g&1 == 0 {
		atomic.StoreUint64(gen, g+1)
	}
	atomic.StoreUint64(t.word(offExpectedA), counts.Dwmcore)
	atomic.StoreUint64(t.word(offExpectedB), counts.UDwm)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&t.m[offFingerprint])), fingerprint)
	t.zeroEntries()
	return nil
}

// EndPass publishes the entries written since BeginPass.
func (t *Table) EndPass() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(); err != nil {
		return err
	}

	gen := t.word(offGeneration)
	if g := atomic.LoadUint64(gen); g&1 == 1 {
		atomic.StoreUint64(gen, g+1)
	}
	return nil
}

// Set stores offset at index i.
func (t *Table) Set(i int, offset uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= t.count {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, t.count)
	}
	atomic.StoreUint64(t.entry(i), offset)
	return nil
}

// Reset zeroes every entry without touching the generation.
func (t *Table) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(); err != nil {
		return err
	}
	t.zeroEntries()
	return nil
}

func (t *Table) zeroEntries() {
	for i := 0; i < t.count; i++ {
		atomic.StoreUint64(t.entry(i), 0)
	}
}

func (t *Table) checkWritable() error {
	if t.m == nil {
		return ErrClosed
	}
	if !t.writable {
		return ErrReadOnly
	}
	return nil
}

// GetOffset returns entry index, or 0 if the index is out of range, the table
// is closed, or a pass kept rewriting the table for the whole retry budget.
func (t *Table) GetOffset(index uint32) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil || uint64(index) >= uint64(t.count) {
		return 0
	}

	gen := t.word(offGeneration)
	e := t.entry(int(index))
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		g := atomic.LoadUint64(gen)
		if g&1 == 1 {
			runtime.Gosched()
			continue
		}
		v := atomic.LoadUint64(e)
		if atomic.LoadUint64(gen) == g {
			return v
		}
	}
	return 0
}

// Snapshot returns a consistent copy of all entries and the generation it was
// taken at. ok is false if no stable copy could be taken.
func (t *Table) Snapshot() (entries []uint64, generation uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		return nil, 0, false
	}

	gen := t.word(offGeneration)
	entries = make([]uint64, t.count)
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		g := atomic.LoadUint64(gen)
		if g&1 == 1 {
			runtime.Gosched()
			continue
		}
		for i := range entries {
			entries[i] = atomic.LoadUint64(t.entry(i))
		}
		if atomic.LoadUint64(gen) == g {
			return entries, g, true
		}
	}
	return nil, 0, false
}

// Bytes returns a copy of the raw region.
func (t *Table) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		return nil
	}
	out := make([]byte, len(t.m))
	copy(out, t.m)
	return out
}

// Flush writes dirty pages back to the file.
func (t *Table) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.m.Flush()
}

// Close unmaps the region. The backing file is kept.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		return nil
	}

	var firstErr error
	if t.writable {
		if err := t.m.Flush(); err != nil {
			firstErr = fmt.Errorf("flush region: %w", err)
		}
	}
	if err := t.m.Unmap(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("unmap region: %w", err)
	}
	if err := t.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close region: %w", err)
	}
	t.m = nil
	return firstErr
}
