package flash

import (
	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/log"
)

// ack clears status flags with the clear idiom of the family.
func (c *Controller) ack(r *bankRegs, mask uint32) {
	switch c.p.Clear {
	case variant.ClearModify:
		r.sr.Modify(0, mask)
	case variant.ClearWrite:
		r.sr.Write(mask)
	case variant.ClearRegister:
		r.ccr.Write(mask)
	}
}

// clearErrors acknowledges every error flag that is currently set and
// returns the flags it cleared.
func (c *Controller) clearErrors(r *bankRegs) uint32 {
	pending := r.sr.Read() & c.p.Bits.ErrorMask()
	if pending == 0 {
		return 0
	}

	for _, e := range c.p.Bits.Errors {
		if pending&e.Mask != 0 {
			c.ack(r, e.Mask)
		}
	}

	c.logger.Debug("Cleared stale flash errors",
		log.Stringer("bank", r.bank),
		log.Hex("flags", pending))
	return pending
}
