// Command offsetaccessor builds the shared library the injected extension
// loads to read resolved offsets:
//
//	go build -buildmode=c-shared -o DWMBlurGlassOffsets.dll ./cmd/offsetaccessor
//
// Only plain integers and a path cross the boundary.
package main

import "C"

//export OpenOffsetTable
func OpenOffsetTable(path *C.char) C.int {
	if path == nil {
		return -1
	}
	if err := openTable(C.GoString(path)); err != nil {
		return -1
	}
	return 0
}

//export CloseOffsetTable
func CloseOffsetTable() {
	closeTable()
}

//export GetModuleOffset
func GetModuleOffset(index C.uint) C.ulonglong {
	return C.ulonglong(offsetAt(uint32(index)))
}

//export GetOffsetTableFingerprint
func GetOffsetTableFingerprint() C.uint {
	return C.uint(expectedFingerprint())
}

func main() {}
