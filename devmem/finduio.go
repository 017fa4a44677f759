package devmem

import (
	"errors"
	"os"
	"path"
	"strconv"
	"strings"
)

// SysfsRoot is where UIO devices are listed.
var SysfsRoot = "/sys/class/uio"

// UIOMap is one memory region exported by a UIO device. It is mapped by
// passing Index times the page size as mmap offset.
type UIOMap struct {
	Device string
	Index  int
	Addr   uint32
	Size   uint32
}

func readHex(file string) (uint64, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}

	value := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	if len(value) == 0 {
		return 0, errors.New("sysfs entry is empty")
	}

	return strconv.ParseUint(value, 16, 64)
}

func readMaps(dev string) []UIOMap {
	mapsDir := path.Join(SysfsRoot, dev, "maps")

	entries, err := os.ReadDir(mapsDir)
	if err != nil {
		return nil
	}

	var results []UIOMap
	for _, m := range entries {
		name := m.Name()

		if !strings.HasPrefix(name, "map") {
			continue
		}

		index, err := strconv.ParseUint(name[3:], 10, 16)
		if err != nil {
			continue
		}

		addr, err := readHex(path.Join(mapsDir, name, "addr"))
		if err != nil {
			continue
		}
		size, err := readHex(path.Join(mapsDir, name, "size"))
		if err != nil {
			continue
		}

		results = append(results, UIOMap{
			Device: "/dev/" + dev,
			Index:  int(index),
			Addr:   uint32(addr),
			Size:   uint32(size),
		})
	}

	return results
}

// FindUIO finds the UIO map containing the physical address addr.
func FindUIO(addr uint32) (UIOMap, error) {
	entries, err := os.ReadDir(SysfsRoot)
	if err != nil {
		return UIOMap{}, err
	}

	var results []UIOMap
	for _, m := range entries {
		name := m.Name()

		if !strings.HasPrefix(name, "uio") {
			continue
		}

		for _, r := range readMaps(name) {
			if addr >= r.Addr && uint64(addr-r.Addr) < uint64(r.Size) {
				results = append(results, r)
			}
		}
	}

	if len(results) == 0 {
		return UIOMap{}, errors.New("UIO device was not found")
	}
	if len(results) > 1 {
		return UIOMap{}, errors.New("more than one UIO device found")
	}

	return results[0], nil
}
