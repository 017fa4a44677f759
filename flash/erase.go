package flash

import (
	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/log"
)

// start triggers the operation selected in CR, waits for it and removes the
// mode bits again.
func (c *Controller) start(r *bankRegs, mode uint32) error {
	b := c.p.Bits

	r.cr.Set(b.Start)
	err := c.waitIdle(r)

	if err == nil && c.p.EraseWaitEOP {
		err = c.wait.Wait(func() bool {
			return r.sr.IsSet(b.EOP | b.ErrorMask())
		})
	}
	if r.sr.IsSet(b.EOP) {
		c.ack(r, b.EOP)
	}

	r.cr.Clear(mode)
	return err
}

func (c *Controller) eraseUnit(name string, index int, bank variant.Bank) error {
	if err := c.checkIndex(index, bank); err != nil {
		return err
	}

	dual := c.dual
	addr := c.p.Address(bank, index, dual)

	return c.protected(name, bank, func(r *bankRegs) error {
		b := c.p.Bits
		mode := b.PER | b.SER | b.BKER | b.PSIZE | b.Select.Mask()

		var set uint32
		switch c.p.EraseSelect {
		case variant.SelectAddress:
			set = b.PER
		case variant.SelectSector:
			set = b.SER | b.PSIZE | b.Select.Bits(uint32(index))
		case variant.SelectPage:
			set = b.PER | b.Select.Bits(uint32(index))
			if bank == variant.B2 && c.p.DualAddressing(dual) {
				set |= b.BKER
			}
		}

		r.cr.Modify(mode, set)
		if c.p.EraseSelect == variant.SelectAddress {
			r.ar.Write(addr)
		}

		c.logger.Debug("Erasing",
			log.String("unit", c.p.UnitName()),
			log.Int("index", index),
			log.Hex("address", addr))

		return c.start(r, mode)
	})
}

// ErasePage erases one page. Parts that erase by sector refuse it with
// ErrorIllegal.
func (c *Controller) ErasePage(index int, bank variant.Bank) error {
	if c.p.Sectors {
		return ErrorIllegal
	}
	return c.eraseUnit("erase page", index, bank)
}

// EraseSector erases one sector. Parts that erase by page refuse it with
// ErrorIllegal.
func (c *Controller) EraseSector(index int, bank variant.Bank) error {
	if !c.p.Sectors {
		return ErrorIllegal
	}
	return c.eraseUnit("erase sector", index, bank)
}

// EraseUnit erases a page or a sector, whichever the part has.
func (c *Controller) EraseUnit(index int, bank variant.Bank) error {
	return c.eraseUnit("erase "+c.p.UnitName(), index, bank)
}

func (c *Controller) massErase(r *bankRegs, mask uint32) error {
	return c.protected("mass erase", r.bank, func(r *bankRegs) error {
		r.cr.Set(mask)
		return c.start(r, mask)
	})
}

// EraseBank erases every page or sector of bank.
func (c *Controller) EraseBank(bank variant.Bank) error {
	return c.EraseBanks(bank)
}

// EraseBanks erases the given banks. Parts with a shared register set start
// one mass erase covering all of them. In single bank mode any bank erases the
// whole memory.
func (c *Controller) EraseBanks(banks ...variant.Bank) error {
	for _, bank := range banks {
		if !c.unchecked && !c.p.HasBank(bank) {
			return ErrorPageOutOfRange
		}
	}

	b := c.p.Bits
	if c.p.PerBankRegisters() {
		for _, bank := range banks {
			if err := c.massErase(c.regs(bank), b.MassErase[bank&1]); err != nil {
				return err
			}
		}
		return nil
	}

	var mask uint32
	for _, bank := range banks {
		if !c.p.DualAddressing(c.dual) || b.MassErase[bank&1] == 0 {
			mask |= b.MassErase[variant.B1]
		} else {
			mask |= b.MassErase[bank&1]
		}
	}
	if mask == 0 {
		return nil
	}

	return c.massErase(c.regs(variant.B1), mask)
}

// EraseAll erases the complete flash memory.
func (c *Controller) EraseAll() error {
	var banks []variant.Bank
	for i := 0; i < c.p.AddressBanks(c.dual); i++ {
		banks = append(banks, variant.Bank(i))
	}
	return c.EraseBanks(banks...)
}
