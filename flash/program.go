package flash

import (
	"encoding/binary"

	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/log"
)

func (c *Controller) erasedChunk(chunk []byte) bool {
	for _, m := range chunk {
		if m != c.p.Erased {
			return false
		}
	}
	return true
}

// program writes data starting at addr one flash word at a time. A trailing
// partial word is padded with the erased value.
func (c *Controller) program(bank variant.Bank, addr uint32, data []byte) error {
	return c.protected("program", bank, func(r *bankRegs) error {
		b := c.p.Bits
		mode := b.PG | b.PSIZE

		r.cr.Modify(b.PSIZE, mode)
		defer r.cr.Clear(mode)

		c.logger.Debug("Programming",
			log.Hex("address", addr),
			log.Int("length", len(data)))

		w := c.p.WordSize
		chunk := make([]byte, w)
		for offset := 0; offset < len(data); offset += w {
			n := copy(chunk, data[offset:])
			for i := n; i < w; i++ {
				chunk[i] = c.p.Erased
			}

			/* Erased words are already in the requested state */
			if c.erasedChunk(chunk) {
				continue
			}

			base := addr + uint32(offset)
			for i := 0; i < w; i += 4 {
				c.bus.Write32(base+uint32(i), binary.LittleEndian.Uint32(chunk[i:]))
			}

			if err := c.waitIdle(r); err != nil {
				return err
			}
			if r.sr.IsSet(b.EOP) {
				c.ack(r, b.EOP)
			}
			if err := c.statusError(r); err != nil {
				return err
			}
		}

		return nil
	})
}

// WritePage programs data at the start of a previously erased page or
// sector. Data longer than the unit is refused with ErrorPageOutOfRange.
func (c *Controller) WritePage(index int, bank variant.Bank, data []byte) error {
	return c.WritePageAt(index, bank, 0, data)
}

// WritePageAt programs data at a byte offset inside a page or sector. The
// offset must be a multiple of the programming word size.
func (c *Controller) WritePageAt(index int, bank variant.Bank, offset int, data []byte) error {
	if err := c.checkIndex(index, bank); err != nil {
		return err
	}

	dual := c.dual
	if !c.unchecked {
		if offset < 0 || offset%c.p.WordSize != 0 {
			return ErrorIllegal
		}
		if uint64(offset)+uint64(len(data)) > uint64(c.p.UnitSizeAt(index, dual)) {
			return ErrorPageOutOfRange
		}
	}

	return c.program(bank, c.p.Address(bank, index, dual)+uint32(offset), data)
}

// EraseWritePage erases a page or sector and programs data into it. The
// write is not attempted when the erase fails.
func (c *Controller) EraseWritePage(index int, bank variant.Bank, data []byte) error {
	if err := c.EraseUnit(index, bank); err != nil {
		return err
	}
	return c.WritePage(index, bank, data)
}
