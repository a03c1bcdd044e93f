package process

import (
	"fmt"
	"sort"
	"strings"
)

// ModuleInfo describes an image loaded in a process.
type ModuleInfo struct {
	Name string               // File name, e.g. "dwmcore.dll"
	Path string               // Full path of the image
	Base ProcessMemoryAddress // Load address
	Size ProcessMemorySize    // Size of the mapped image in bytes
}

func (mi ModuleInfo) String() string {
	return fmt.Sprintf("%s @ %s (%d bytes)", mi.Name, mi.Base.ToString(), uint(mi.Size))
}

// End returns the first address past the image.
func (mi ModuleInfo) End() ProcessMemoryAddress {
	return mi.Base + ProcessMemoryAddress(mi.Size)
}

// ModuleMap is a list of loaded modules sorted by base address.
type ModuleMap []ModuleInfo

// NewModuleMap sorts items by base address.
func NewModuleMap(items []ModuleInfo) ModuleMap {
	mm := make(ModuleMap, len(items))
	copy(mm, items)
	sort.Slice(mm, func(i, j int) bool { return mm[i].Base < mm[j].Base })
	return mm
}

// Find returns the module whose file name equals name, ignoring case.
func (mm ModuleMap) Find(name string) (ModuleInfo, error) {
	for _, m := range mm {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return ModuleInfo{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

// Containing returns the module that maps addr.
func (mm ModuleMap) Containing(addr ProcessMemoryAddress) (ModuleInfo, error) {
	i := sort.Search(len(mm), func(i int) bool {
		return mm[i].End() > addr
	})
	if i < len(mm) && mm[i].Base <= addr {
		return mm[i], nil
	}
	return ModuleInfo{}, fmt.Errorf("%w: %s", ErrAddressNotMapped, addr.ToString())
}
