package offsettable

import "errors"

// Region layout, version 1. All fields are little endian and 8-byte aligned
// where they are 8 bytes wide; the mapping itself is page aligned.
const (
	Magic         uint32 = 0x4F465354 // "TSFO"
	LayoutVersion uint32 = 1

	offMagic       = 0
	offVersion     = 4
	offGeneration  = 8
	offCount       = 16
	offFingerprint = 20
	offExpectedA   = 24
	offExpectedB   = 32
	HeaderSize     = 40

	EntrySize = 8
)

// maxReadAttempts bounds how long GetOffset spins on a table that is being
// rewritten before giving up and reporting the entry as unresolved.
const maxReadAttempts = 64

var (
	ErrBadMagic        = errors.New("offset table: bad magic")
	ErrBadVersion      = errors.New("offset table: unsupported layout version")
	ErrTruncated       = errors.New("offset table: region shorter than its header claims")
	ErrReadOnly        = errors.New("offset table: mapped read-only")
	ErrIndexOutOfRange = errors.New("offset table: index out of range")
	ErrClosed          = errors.New("offset table: closed")
	ErrShapeMismatch   = errors.New("offset table: region has a different shape")
)

// RegionSize returns the size in bytes of a region holding n entries.
func RegionSize(n int) int {
	return HeaderSize + n*EntrySize
}
