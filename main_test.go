package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BertoldVdb/mcuflash/image"
	"github.com/retroenv/retrogolib/assert"
)

func testGlobals(t *testing.T, variant string) *Globals {
	t.Helper()
	return &Globals{
		Variant:  variant,
		Backend:  "sim",
		SimFile:  filepath.Join(t.TempDir(), "flash.bin"),
		DualBank: "auto",
		Quiet:    true,
	}
}

func TestWriteReadSimFile(t *testing.T) {
	g := testGlobals(t, "g071")
	dir := t.TempDir()

	code := bytes.Repeat([]byte{0x5A, 0xA5, 0x00, 0x11}, 100)
	in := filepath.Join(dir, "in.bin")
	assert.NoError(t, os.WriteFile(in, code, 0o644))

	write := &WriteCmd{ImageArgs: ImageArgs{File: in, Base: 0x0800_1000, Padding: 0xFF}}
	assert.NoError(t, write.Run(g))

	out := filepath.Join(dir, "out.hex")
	read := &ReadCmd{Output: out, Base: 0x0800_1000, Size: len(code)}
	assert.NoError(t, read.Run(g))

	img, err := image.LoadFile(out, 0, 0xFF)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x0800_1000), img.Base)
	assert.True(t, bytes.Equal(code, img.Data))

	verify := &VerifyCmd{ImageArgs: ImageArgs{File: in, Base: 0x0800_1000, Padding: 0xFF}}
	assert.NoError(t, verify.Run(g))

	erase := &EraseCmd{Bank: 1, Units: []int{2}}
	assert.NoError(t, erase.Run(g))
	assert.Error(t, verify.Run(g))
}

func TestProgramCheck(t *testing.T) {
	g := testGlobals(t, "f407")
	dir := t.TempDir()

	in := filepath.Join(dir, "bad.bin")
	assert.NoError(t, os.WriteFile(in, make([]byte, 64), 0o644))

	program := &ProgramCmd{ImageArgs: ImageArgs{File: in, Check: true, Padding: 0xFF}}
	assert.True(t, errors.Is(program.Run(g), image.ErrorInvalidHeader))

	program.Check = false
	assert.NoError(t, program.Run(g))
	assert.NoError(t, program.Run(g))
}

func TestGlobalsErrors(t *testing.T) {
	g := testGlobals(t, "z80")
	assert.ErrorContains(t, (&InfoCmd{}).Run(g), "unknown variant")

	g = testGlobals(t, "h743")
	assert.ErrorContains(t, (&EraseCmd{Bank: 3}).Run(g), "bank must be 1 or 2")
	assert.NoError(t, (&InfoCmd{}).Run(g))
	assert.NoError(t, (&EraseCmd{All: true, Bank: 1}).Run(g))
	assert.NoError(t, (&VariantsCmd{}).Run(g))
}
