// Package image handles firmware images: loading raw binaries and Intel HEX
// files, the vector table sanity check, the checksum trailer and splitting an
// image into the pages or sectors of a flash part.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/marcinbor85/gohex"
)

var (
	ErrorInvalidLength = errors.New("image length not valid")
	ErrorInvalidHeader = errors.New("vector table is not valid")
	ErrorInvalidCRC    = errors.New("CRC is not valid")
	ErrorOutsideFlash  = errors.New("image does not fit in flash")
	ErrorEmpty         = errors.New("image is empty")
)

// Image is a contiguous block of memory contents starting at Base.
type Image struct {
	Base uint32
	Data []byte
}

func (img *Image) End() uint32 {
	return img.Base + uint32(len(img.Data))
}

// ParseHex reads an Intel HEX file. Gaps between segments are filled with
// padding.
func ParseHex(r io.Reader, padding byte) (*Image, error) {
	ihex := gohex.NewMemory()
	if err := ihex.ParseIntelHex(r); err != nil {
		return nil, err
	}

	segments := ihex.GetDataSegments()
	if len(segments) == 0 {
		return nil, ErrorEmpty
	}

	start := segments[0].Address
	end := start
	for _, segment := range segments {
		start = min(start, segment.Address)
		end = max(end, segment.Address+uint32(len(segment.Data)))
	}

	return &Image{
		Base: start,
		Data: ihex.ToBinary(start, end-start, padding),
	}, nil
}

// ReadRaw reads a binary image that is placed at base.
func ReadRaw(r io.Reader, base uint32) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrorEmpty
	}

	return &Image{Base: base, Data: data}, nil
}

func isHexFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex", ".ihx":
		return true
	}
	return false
}

// LoadFile loads an Intel HEX file, recognized by its extension, or a raw
// binary placed at base.
func LoadFile(path string, base uint32, padding byte) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if isHexFile(path) {
		return ParseHex(f, padding)
	}
	return ReadRaw(f, base)
}

func (img *Image) WriteHex(w io.Writer) error {
	ihex := gohex.NewMemory()
	if err := ihex.AddBinary(img.Base, img.Data); err != nil {
		return err
	}
	return ihex.DumpIntelHex(w, 16)
}

// SaveFile writes the image as Intel HEX or raw binary depending on the
// extension of path.
func (img *Image) SaveFile(path string) error {
	if !isHexFile(path) {
		return os.WriteFile(path, img.Data, 0644)
	}

	var buf bytes.Buffer
	if err := img.WriteHex(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

/* The first two words of the vector table are the initial stack pointer,
 * which must point to RAM, and the thumb mode reset handler inside the image */
func validateHeader(img *Image) error {
	if len(img.Data) < 8 {
		return ErrorInvalidLength
	}

	sp := binary.LittleEndian.Uint32(img.Data)
	reset := binary.LittleEndian.Uint32(img.Data[4:])

	if sp&0xE000_0000 != 0x2000_0000 || sp&3 != 0 {
		return ErrorInvalidHeader
	}
	if reset&1 == 0 || reset < img.Base || reset >= img.End() {
		return ErrorInvalidHeader
	}

	return nil
}

// Validate checks the vector table and the checksum trailer written by Build.
func Validate(img *Image) error {
	if len(img.Data) < 12 || len(img.Data)%4 != 0 {
		return ErrorInvalidLength
	}

	if err := validateHeader(img); err != nil {
		return err
	}

	if !crcCalculateAndWriteCheck(img.Data, false) {
		return ErrorInvalidCRC
	}

	return nil
}

// Build pads code with the erased value to size bytes and stores the
// checksum of everything before it in the last word. A size of zero uses the
// smallest word aligned length.
func Build(base uint32, code []byte, size int, erased byte) (*Image, error) {
	if size == 0 {
		size = (len(code) + 4 + 3) &^ 3
	}
	if size%4 != 0 || size < len(code)+4 {
		return nil, ErrorInvalidLength
	}

	fw := make([]byte, size)
	for i := len(code); i < len(fw); i++ {
		fw[i] = erased
	}
	copy(fw, code)

	crcCalculateAndWriteCheck(fw, true)
	return &Image{Base: base, Data: fw}, nil
}

// Extract validates an image made by Build and returns its contents without
// the checksum.
func Extract(img *Image) ([]byte, error) {
	if err := Validate(img); err != nil {
		return nil, err
	}
	return img.Data[:len(img.Data)-4], nil
}

// Page is the part of an image that lands in one page or sector. Offset is
// aligned to the programming word size; alignment padding is erased value.
type Page struct {
	Bank   variant.Bank
	Index  int
	Offset int
	Data   []byte
}

// Pages splits the image into the pages or sectors of p it touches.
func (img *Image) Pages(p *variant.Profile, mode variant.DualBank) ([]Page, error) {
	var pages []Page

	addr := img.Base
	end := img.End()
	for addr < end {
		bank, index, ok := p.Locate(addr, mode)
		if !ok {
			return nil, fmt.Errorf("%w: address %08x", ErrorOutsideFlash, addr)
		}

		start := p.Address(bank, index, mode)
		chunkEnd := min(start+p.UnitSizeAt(index, mode), end)

		offset := addr - start
		aligned := offset &^ (uint32(p.WordSize) - 1)

		data := make([]byte, 0, chunkEnd-start-aligned)
		for i := aligned; i < offset; i++ {
			data = append(data, p.Erased)
		}
		data = append(data, img.Data[addr-img.Base:chunkEnd-img.Base]...)

		pages = append(pages, Page{
			Bank:   bank,
			Index:  index,
			Offset: int(aligned),
			Data:   data,
		})
		addr = chunkEnd
	}

	return pages, nil
}
