package sim

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/BertoldVdb/mcuflash/variant"
)

func (c *Controller) bankOf(addr uint32) variant.Bank {
	if !c.p.PerBankRegisters() {
		return variant.B1
	}
	bank, _, _ := c.p.Locate(addr, c.mode)
	return bank
}

func (c *Controller) readFlash(addr uint32) uint32 {
	addr &^= 3
	if double, ok := c.ecc[addr]; ok {
		flag := c.eccFlag(double)
		if c.p.Layout.ECCR != 0 {
			c.eccr |= flag
		} else {
			c.set(c.bankOf(addr)).sr |= flag
		}
	}

	off := addr - c.p.FlashBase
	return binary.LittleEndian.Uint32(c.mem[off:]) &^ c.stuck[addr]
}

func (c *Controller) erase(addr uint32, size uint32) {
	off := addr - c.p.FlashBase
	if uint64(off)+uint64(size) > uint64(len(c.mem)) {
		return
	}

	for i := off; i < off+size; i++ {
		c.mem[i] = c.p.Erased
	}
	for a := range c.ecc {
		if a >= addr && a-addr < size {
			delete(c.ecc, a)
		}
	}
}

func (c *Controller) eraseBank(bank variant.Bank) {
	c.erase(c.p.Address(bank, 0, c.mode), c.p.BankSize(c.mode))
}

func (c *Controller) startErase(s *regSet) {
	b := c.p.Bits
	if s.cr&b.PG != 0 {
		s.sr |= c.sequenceError()
		return
	}

	mass := s.cr & (b.MassErase[variant.B1] | b.MassErase[variant.B2])
	switch {
	case mass != 0:
		c.massErase(s, mass)
	case s.cr&(b.PER|b.SER) != 0:
		if !c.unitErase(s) {
			s.sr |= c.sequenceError()
			return
		}
	default:
		s.sr |= c.sequenceError()
		return
	}

	c.Erases++
	s.busy = c.Latency
	s.sr |= b.EOP
}

func (c *Controller) massErase(s *regSet, mass uint32) {
	b := c.p.Bits
	switch {
	case c.p.PerBankRegisters():
		c.eraseBank(s.bank)

	case !c.p.DualAddressing(c.mode):
		c.erase(c.p.FlashBase, uint32(len(c.mem)))

	default:
		if mass&b.MassErase[variant.B1] != 0 {
			c.eraseBank(variant.B1)
		}
		if mass&b.MassErase[variant.B2] != 0 {
			c.eraseBank(variant.B2)
		}
	}
}

func (c *Controller) unitErase(s *regSet) bool {
	b := c.p.Bits
	bank := variant.B1
	index := int(b.Select.Get(s.cr))

	switch c.p.EraseSelect {
	case variant.SelectAddress:
		var ok bool
		if bank, index, ok = c.p.Locate(s.ar, c.mode); !ok {
			return false
		}

	case variant.SelectSector:
		bank = s.bank

	case variant.SelectPage:
		if b.BKER != 0 && s.cr&b.BKER != 0 && c.p.DualAddressing(c.mode) {
			bank = variant.B2
		}
	}

	if !c.p.ValidIndex(bank, index) {
		return false
	}

	c.erase(c.p.Address(bank, index, c.mode), c.p.UnitSizeAt(index, c.mode))
	return true
}

func (c *Controller) program(addr uint32, value uint32) {
	b := c.p.Bits
	s := c.set(c.bankOf(addr))

	if s.locked || s.cr&b.PG == 0 || s.cr&(b.PER|b.SER|b.MassErase[0]|b.MassErase[1]) != 0 {
		s.sr |= c.sequenceError()
		return
	}

	rowStart := addr &^ uint32(c.p.WordSize-1)
	if s.rowFill == 0 {
		s.rowAddr = rowStart
	}
	if addr != s.rowAddr+uint32(s.rowFill) {
		s.rowFill = 0
		s.sr |= c.errorFlag("PGAERR", "PGSERR", "PGERR")
		return
	}

	binary.LittleEndian.PutUint32(s.row[s.rowFill:], value)
	s.rowFill += 4
	if s.rowFill < c.p.WordSize {
		return
	}
	s.rowFill = 0

	off := s.rowAddr - c.p.FlashBase
	cells := c.mem[off : off+uint32(c.p.WordSize)]
	for _, m := range cells {
		if m != c.p.Erased {
			s.sr |= c.errorFlag("PROGERR", "PGERR", "PGSERR")
			return
		}
	}

	/* Programming can only clear bits */
	for i := range cells {
		cells[i] &= s.row[i]
	}

	c.Programs++
	s.busy = c.Latency
	s.sr |= b.EOP
}

// Mem exposes the memory array, starting at the flash base address.
func (c *Controller) Mem() []byte {
	return c.mem
}

// Load fills the memory array from r. A short input leaves the remainder
// erased.
func (c *Controller) Load(r io.Reader) error {
	for i := range c.mem {
		c.mem[i] = c.p.Erased
	}

	_, err := io.ReadFull(r, c.mem)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}
	return err
}

func (c *Controller) Save(w io.Writer) error {
	_, err := w.Write(c.mem)
	return err
}
