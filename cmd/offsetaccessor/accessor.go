package main

import (
	"sync/atomic"

	"dwmhost/offsettable"
)

var current atomic.Pointer[offsettable.Table]

// openTable maps the region at path read-only, replacing any previous one.
func openTable(path string) error {
	t, err := offsettable.Open(path)
	if err != nil {
		return err
	}
	if old := current.Swap(t); old != nil {
		old.Close()
	}
	return nil
}

func closeTable() {
	if old := current.Swap(nil); old != nil {
		old.Close()
	}
}

// offsetAt returns 0 when no region is open or index is out of range.
func offsetAt(index uint32) uint64 {
	t := current.Load()
	if t == nil {
		return 0
	}
	return t.GetOffset(index)
}

// expectedFingerprint reports the hook table fingerprint the region was written for.
func expectedFingerprint() uint32 {
	t := current.Load()
	if t == nil {
		return 0
	}
	return t.Fingerprint()
}
