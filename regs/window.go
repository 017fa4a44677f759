package regs

import (
	"sync/atomic"
	"unsafe"
)

// Window is a Bus over a block of memory, typically an mmap of a physical
// address range. Accesses are single 32-bit loads and stores so they reach
// device memory exactly once; addresses must be word aligned.
type Window struct {
	Base uint32
	Mem  []byte
}

func (w *Window) word(addr uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&w.Mem[(addr-w.Base)&^3]))
}

func (w *Window) Read32(addr uint32) uint32 {
	return atomic.LoadUint32(w.word(addr))
}

func (w *Window) Write32(addr uint32, value uint32) {
	atomic.StoreUint32(w.word(addr), value)
}

// Region routes an address range to a bus.
type Region struct {
	Base uint32
	Size uint32
	Bus  Bus
}

// Map is a Bus that dispatches every access to the region containing it.
// Unmapped reads return all ones and unmapped writes are dropped.
type Map []Region

func (m Map) lookup(addr uint32) Bus {
	for _, r := range m {
		if addr >= r.Base && uint64(addr-r.Base) < uint64(r.Size) {
			return r.Bus
		}
	}
	return nil
}

func (m Map) Read32(addr uint32) uint32 {
	if bus := m.lookup(addr); bus != nil {
		return bus.Read32(addr)
	}
	return 0xFFFFFFFF
}

func (m Map) Write32(addr uint32, value uint32) {
	if bus := m.lookup(addr); bus != nil {
		bus.Write32(addr, value)
	}
}
