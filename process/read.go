package process

import (
	"fmt"
	"unsafe"
)

// Read reads a single value of type T from the process at addr.
func Read[T any](proc Process, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := proc.ReadMemory(addr, size)
	if err != nil {
		return t, err
	}
	if len(data) < int(size) {
		return t, fmt.Errorf("short read at %s: %d of %d bytes", addr.ToString(), len(data), size)
	}

	copy(unsafe.Slice((*byte)(unsafe.Pointer(&t)), size), data)
	return t, nil
}

// ReadAt reads a value of type T at offset bytes into module.
func ReadAt[T any](proc Process, module ModuleInfo, offset uint64) (T, error) {
	if offset >= uint64(module.Size) {
		var zero T
		return zero, fmt.Errorf("%w: offset 0x%X beyond %s", ErrAddressNotMapped, offset, module.Name)
	}
	return Read[T](proc, module.Base+ProcessMemoryAddress(offset))
}
