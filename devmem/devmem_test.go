package devmem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/assert"
)

func writeMap(t *testing.T, root string, dev string, index string, addr string, size string) {
	t.Helper()

	dir := filepath.Join(root, dev, "maps", index)
	assert.NoError(t, os.MkdirAll(dir, 0755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "addr"), []byte(addr+"\n"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "size"), []byte(size+"\n"), 0644))
}

func TestFindUIO(t *testing.T) {
	root := t.TempDir()
	old := SysfsRoot
	SysfsRoot = root
	defer func() { SysfsRoot = old }()

	writeMap(t, root, "uio0", "map0", "0x40022000", "0x400")
	writeMap(t, root, "uio1", "map0", "0x20000000", "0x1000")
	writeMap(t, root, "uio1", "map1", "0x08000000", "0x80000")
	writeMap(t, root, "uio2", "map0", "garbage", "0x10")
	assert.NoError(t, os.MkdirAll(filepath.Join(root, "other"), 0755))

	m, err := FindUIO(0x4002_2010)
	assert.NoError(t, err)
	assert.Equal(t, "/dev/uio0", m.Device)
	assert.Equal(t, 0, m.Index)

	m, err = FindUIO(0x0807_FFFC)
	assert.NoError(t, err)
	assert.Equal(t, "/dev/uio1", m.Device)
	assert.Equal(t, 1, m.Index)
	assert.Equal(t, uint32(0x0800_0000), m.Addr)
	assert.Equal(t, uint32(0x80000), m.Size)

	_, err = FindUIO(0x0808_0000)
	assert.ErrorContains(t, err, "not found")

	writeMap(t, root, "uio3", "map0", "0x08000000", "0x1000")
	_, err = FindUIO(0x0800_0000)
	assert.ErrorContains(t, err, "more than one")
}

func TestWindows(t *testing.T) {
	base, size := pageAlign(0x4002_2000, 0x400)
	assert.Equal(t, uint32(0), base%4096)
	assert.True(t, base <= 0x4002_2000)
	assert.True(t, base+size >= 0x4002_2400)

	h7, _ := variant.Lookup("h743")
	assert.Equal(t, uint32(0x200), registerSpan(h7))

	g4, _ := variant.Lookup("g474")
	assert.Equal(t, uint32(0x400), registerSpan(g4))
}

func TestUIOWindows(t *testing.T) {
	maps := map[uint32]UIOMap{
		0x5200_2000: {Device: "/dev/uio0", Index: 0, Addr: 0x5200_2000, Size: 0x200},
		0x0800_0000: {Device: "/dev/uio1", Index: 2, Addr: 0x0800_0000, Size: 2 * 1024 * 1024},
	}
	find := func(addr uint32) (UIOMap, error) {
		return maps[addr], nil
	}

	h7, _ := variant.Lookup("h743")
	windows, err := uioWindows(h7, find, 4096)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(windows))
	assert.Equal(t, uint32(0x5200_2000), windows[0].base)
	assert.Equal(t, uint32(4096), windows[0].size)
	assert.Equal(t, int64(2*4096), windows[1].offset)

	/* Bank 2 registers at +0x100 must be reachable */
	maps[0x5200_2000] = UIOMap{Device: "/dev/uio0", Addr: 0x5200_2000, Size: 0x100}
	_, err = uioWindows(h7, find, 4096)
	assert.ErrorContains(t, err, "does not cover the registers")

	/* Regions not starting on a page boundary */
	g4, _ := variant.Lookup("g474")
	maps[0x4002_2000] = UIOMap{Device: "/dev/uio2", Addr: 0x4002_2000, Size: 0x400}
	maps[0x0800_0000] = UIOMap{Device: "/dev/uio3", Addr: 0x0800_0000, Size: 512 * 1024}
	windows, err = uioWindows(g4, find, 0x10000)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x4002_0000), windows[0].base)
	assert.Equal(t, uint32(0x10000), windows[0].size)
	assert.True(t, windows[0].covers(0x4002_2000, 0x400))
}

func TestOpenMissing(t *testing.T) {
	p, _ := variant.Lookup("g071")
	_, err := Open(filepath.Join(t.TempDir(), "mem"), p)
	assert.Error(t, err)
}
