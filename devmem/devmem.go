// Package devmem gives the driver access to real hardware from Linux by
// mapping the controller registers and the flash window into the process,
// either through /dev/mem or through UIO devices.
package devmem

import (
	"fmt"

	"github.com/BertoldVdb/mcuflash/regs"
	"github.com/BertoldVdb/mcuflash/variant"
	"golang.org/x/sys/unix"
)

// Device is a regs.Bus over the mapped windows.
type Device struct {
	regs.Map

	mappings [][]byte
}

type window struct {
	path   string
	offset int64
	base   uint32
	size   uint32
}

func registerSpan(p *variant.Profile) uint32 {
	span := uint32(0x400)
	if p.PerBankRegisters() {
		span = p.RegisterBase(variant.Bank(p.Banks-1)) - p.RegBase + 0x100
	}
	return span
}

func pageAlign(base uint32, size uint32) (uint32, uint32) {
	page := uint32(unix.Getpagesize())
	aligned := base &^ (page - 1)
	size += base - aligned
	return aligned, (size + page - 1) &^ (page - 1)
}

func (d *Device) mmap(w window) error {
	fd, err := unix.Open(w.path, unix.O_RDWR|unix.O_SYNC, 0600)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, w.offset, int(w.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap %s at %08x: %w", w.path, w.base, err)
	}

	d.mappings = append(d.mappings, mem)
	d.Map = append(d.Map, regs.Region{
		Base: w.base,
		Size: w.size,
		Bus:  &regs.Window{Base: w.base, Mem: mem},
	})
	return nil
}

func open(windows []window) (*Device, error) {
	d := &Device{}
	for _, w := range windows {
		if err := d.mmap(w); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// Open maps the register block and the flash of p through a physical
// memory device such as /dev/mem.
func Open(path string, p *variant.Profile) (*Device, error) {
	regBase, regSize := pageAlign(p.RegBase, registerSpan(p))
	flashBase, flashSize := pageAlign(p.FlashBase, p.Size())

	return open([]window{
		{path: path, offset: int64(regBase), base: regBase, size: regSize},
		{path: path, offset: int64(flashBase), base: flashBase, size: flashSize},
	})
}

func (w window) covers(base uint32, size uint32) bool {
	return base >= w.base && uint64(base)+uint64(size) <= uint64(w.base)+uint64(w.size)
}

/* UIO maps the page holding the start of the region, so the window starts at
 * the page boundary below m.Addr */
func uioWindow(m UIOMap, page uint32) window {
	base := m.Addr &^ (page - 1)
	size := (m.Addr - base + m.Size + page - 1) &^ (page - 1)

	return window{
		path:   m.Device,
		offset: int64(m.Index) * int64(page),
		base:   base,
		size:   size,
	}
}

func uioWindows(p *variant.Profile, find func(addr uint32) (UIOMap, error), page uint32) ([]window, error) {
	spans := []struct {
		what string
		base uint32
		size uint32
	}{
		{"registers", p.RegBase, registerSpan(p)},
		{"flash", p.FlashBase, p.Size()},
	}

	var windows []window
	for _, span := range spans {
		m, err := find(span.base)
		if err != nil {
			return nil, fmt.Errorf("address %08x: %w", span.base, err)
		}

		exported := window{base: m.Addr, size: m.Size}
		if !exported.covers(span.base, span.size) {
			return nil, fmt.Errorf("UIO map %s/%d does not cover the %s", m.Device, m.Index, span.what)
		}
		windows = append(windows, uioWindow(m, page))
	}
	return windows, nil
}

// OpenUIO maps the register block and the flash of p through the UIO
// devices exporting them.
func OpenUIO(p *variant.Profile) (*Device, error) {
	windows, err := uioWindows(p, FindUIO, uint32(unix.Getpagesize()))
	if err != nil {
		return nil, err
	}
	return open(windows)
}

func (d *Device) Close() error {
	var err error
	for _, m := range d.mappings {
		if e := unix.Munmap(m); e != nil && err == nil {
			err = e
		}
	}
	d.mappings = nil
	d.Map = nil
	return err
}
