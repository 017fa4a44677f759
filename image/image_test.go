package image

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/assert"
)

func TestCRC(t *testing.T) {
	assert.Equal(t, uint32(0xa3141bda), CRC32([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	/* Reference value of the hardware unit for DR=0x12345678 */
	assert.Equal(t, uint32(0xdf8a8a2b), CRC32([]byte{0x78, 0x56, 0x34, 0x12}))
	assert.Equal(t, uint32(0xFFFFFFFF), CRC32(nil))
}

func TestCRCUnalignedPanics(t *testing.T) {
	defer func() {
		assert.NotNil(t, recover())
	}()
	CRC32([]byte{1, 2, 3})
	t.Fatal("unaligned input accepted")
}

func getRandomBuf(length int) []byte {
	out := make([]byte, length)
	rand.Read(out)
	return out
}

func firmware(base uint32, length int) []byte {
	code := getRandomBuf(length)
	binary.LittleEndian.PutUint32(code, 0x2000_5000)
	binary.LittleEndian.PutUint32(code[4:], base+0x101)
	return code
}

func TestBuildExtract(t *testing.T) {
	code := firmware(0x0800_0000, 0x1000-6)

	img, err := Build(0x0800_0000, code, 0x2000, 0xFF)
	assert.NoError(t, err)
	assert.Equal(t, 0x2000, len(img.Data))
	assert.NoError(t, Validate(img))

	extracted, err := Extract(img)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(code, extracted[:len(code)]))
	assert.Equal(t, byte(0xFF), extracted[len(code)])

	img, err = Build(0x0800_0000, code, 0, 0xFF)
	assert.NoError(t, err)
	assert.Equal(t, 0x1000, len(img.Data))
	assert.NoError(t, Validate(img))

	_, err = Build(0x0800_0000, code, 0x1000-4, 0xFF)
	assert.Equal(t, ErrorInvalidLength, err)
}

func TestValidate(t *testing.T) {
	img, err := Build(0x0800_0000, firmware(0x0800_0000, 0x400), 0x800, 0xFF)
	assert.NoError(t, err)
	c := bytes.Clone(img.Data)

	assert.Equal(t, ErrorInvalidLength, Validate(&Image{Base: img.Base, Data: img.Data[:10]}))

	img.Data[3] = 0x08
	assert.Equal(t, ErrorInvalidHeader, Validate(img))
	img.Data[3] = c[3]

	img.Data[4]--
	assert.Equal(t, ErrorInvalidHeader, Validate(img))
	img.Data[4]++

	img.Data[0x300]++
	assert.Equal(t, ErrorInvalidCRC, Validate(img))
	img.Data[0x300]--

	assert.NoError(t, Validate(img))
	assert.True(t, bytes.Equal(c, img.Data))
}

const testHex = `:020000040800F2
:100000000050002001010008FFFFFFFFFFFFFFFF7E
:04001000DEADBEEFB4
:00000001FF
`

func TestParseHex(t *testing.T) {
	img, err := ParseHex(strings.NewReader(testHex), 0xFF)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x0800_0000), img.Base)
	assert.Equal(t, 0x14, len(img.Data))
	assert.Equal(t, uint32(0x2000_5000), binary.LittleEndian.Uint32(img.Data))
	assert.Equal(t, byte(0xEF), img.Data[0x13])

	var out bytes.Buffer
	assert.NoError(t, img.WriteHex(&out))

	again, err := ParseHex(&out, 0xFF)
	assert.NoError(t, err)
	assert.Equal(t, img.Base, again.Base)
	assert.True(t, bytes.Equal(img.Data, again.Data))

	_, err = ParseHex(strings.NewReader(":00000001FF\n"), 0xFF)
	assert.Equal(t, ErrorEmpty, err)
}

func TestLoadSaveFile(t *testing.T) {
	dir := t.TempDir()
	img := &Image{Base: 0x0800_4000, Data: getRandomBuf(100)}

	for _, name := range []string{"fw.bin", "fw.hex"} {
		path := filepath.Join(dir, name)
		assert.NoError(t, img.SaveFile(path))

		loaded, err := LoadFile(path, 0x0800_4000, 0xFF)
		assert.NoError(t, err)
		assert.Equal(t, img.Base, loaded.Base)
		assert.True(t, bytes.Equal(img.Data, loaded.Data))
	}

	_, err := LoadFile(filepath.Join(dir, "missing.bin"), 0, 0xFF)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPages(t *testing.T) {
	p, _ := variant.Lookup("g474")

	/* Starts in the middle of a word and crosses a page boundary */
	img := &Image{Base: 0x0800_07FA, Data: getRandomBuf(0x10)}
	pages, err := img.Pages(p, variant.Dual)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(pages))

	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, 0x7F8, pages[0].Offset)
	assert.Equal(t, 8, len(pages[0].Data))
	assert.True(t, bytes.Equal([]byte{0xFF, 0xFF}, pages[0].Data[:2]))
	assert.True(t, bytes.Equal(img.Data[:6], pages[0].Data[2:]))

	assert.Equal(t, 1, pages[1].Index)
	assert.Equal(t, 0, pages[1].Offset)
	assert.True(t, bytes.Equal(img.Data[6:], pages[1].Data))

	/* Bank two in dual mode, same address is page 64 in single mode */
	img = &Image{Base: 0x0804_0000, Data: getRandomBuf(8)}
	pages, err = img.Pages(p, variant.Dual)
	assert.NoError(t, err)
	assert.Equal(t, variant.B2, pages[0].Bank)
	assert.Equal(t, 0, pages[0].Index)

	pages, err = img.Pages(p, variant.Single)
	assert.NoError(t, err)
	assert.Equal(t, variant.B1, pages[0].Bank)
	assert.Equal(t, 64, pages[0].Index)

	img = &Image{Base: 0x0807_FFF8, Data: getRandomBuf(16)}
	_, err = img.Pages(p, variant.Dual)
	assert.True(t, errors.Is(err, ErrorOutsideFlash))
}
