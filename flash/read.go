package flash

import (
	"encoding/binary"
	"io"

	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/log"
)

// Read returns the 64-bit cell at offset, counted in 64-bit units, of a page
// or sector.
func (c *Controller) Read(index int, bank variant.Bank, offset int) uint64 {
	addr := c.p.Address(bank, index, c.dual) + uint32(offset)*8

	lo := c.bus.Read32(addr)
	hi := c.bus.Read32(addr + 4)
	return uint64(hi)<<32 | uint64(lo)
}

func (c *Controller) readMemory(addr uint32, buf []byte) {
	width := uint32(c.p.ReadWidth)
	if width < 4 {
		width = 4
	}

	var word [32]byte
	for len(buf) > 0 {
		start := addr &^ (width - 1)
		for i := uint32(0); i < width; i += 4 {
			binary.LittleEndian.PutUint32(word[i:], c.bus.Read32(start+i))
		}

		n := copy(buf, word[addr-start:width])
		buf = buf[n:]
		addr += uint32(n)
	}
}

// checkECC reports and acknowledges an ECC detection raised by reads of the
// given banks. Flags of other banks are left for their own reads.
func (c *Controller) checkECC(banks ...variant.Bank) error {
	mask := c.p.Bits.ECC
	if mask == 0 {
		return nil
	}

	if c.eccr.Valid() {
		flags := c.eccr.Read() & mask
		if flags == 0 {
			return nil
		}
		c.eccr.Write(c.eccr.Read()&^mask | flags)
		c.logger.Debug("ECC error", log.Hex("eccr", flags))
		return ErrorECC
	}

	var err error
	checked := make(map[*bankRegs]bool)
	for _, bank := range banks {
		r := c.regs(bank)
		if checked[r] {
			continue
		}
		checked[r] = true

		if flags := r.sr.Read() & mask; flags != 0 {
			c.ack(r, flags)
			c.logger.Debug("ECC error", log.Stringer("bank", r.bank), log.Hex("status", flags))
			err = ErrorECC
		}
	}
	return err
}

// ReadToBuffer copies len(buf) bytes starting at a byte offset inside a page
// or sector.
func (c *Controller) ReadToBuffer(index int, bank variant.Bank, offset int, buf []byte) error {
	if err := c.checkIndex(index, bank); err != nil {
		return err
	}

	dual := c.dual
	if !c.unchecked && (offset < 0 || uint64(offset)+uint64(len(buf)) > uint64(c.p.UnitSizeAt(index, dual))) {
		return ErrorPageOutOfRange
	}

	c.readMemory(c.p.Address(bank, index, dual)+uint32(offset), buf)
	return c.checkECC(bank)
}

// ReadAt reads the flash as one linear address space starting at the flash
// base address.
func (c *Controller) ReadAt(p []byte, off int64) (int, error) {
	size := int64(c.p.Size())
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	var err error
	if int64(len(p)) > size-off {
		p = p[:size-off]
		err = io.EOF
	}

	if len(p) == 0 {
		return 0, err
	}

	start := c.p.FlashBase + uint32(off)
	c.readMemory(start, p)

	first, _, _ := c.p.Locate(start, c.dual)
	last, _, _ := c.p.Locate(start+uint32(len(p))-1, c.dual)
	if eccErr := c.checkECC(first, last); eccErr != nil {
		return len(p), eccErr
	}
	return len(p), err
}
