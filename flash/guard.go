package flash

import (
	"github.com/retroenv/retrogolib/log"
)

const (
	KEY1 = 0x45670123
	KEY2 = 0xCDEF89AB
)

func (c *Controller) unlockBank(r *bankRegs) error {
	lock := c.p.Bits.Lock
	if !r.cr.IsSet(lock) {
		return nil
	}

	r.keyr.Write(KEY1)
	r.keyr.Write(KEY2)

	if r.cr.IsSet(lock) {
		c.logger.Debug("Unlock sequence rejected", log.Stringer("bank", r.bank))
		return ErrorFailure
	}
	return nil
}

func (c *Controller) lockBank(r *bankRegs) {
	if err := c.waitIdle(r); err != nil {
		c.logger.Warn("Locking flash while busy", log.Stringer("bank", r.bank), log.Err(err))
	}
	r.cr.Set(c.p.Bits.Lock)
}

// Unlock clears the lock bit of every register set. It is idempotent; a
// rejected key sequence gives ErrorFailure, relocks the sets unlocked so far
// and the rejected set stays locked until reset.
func (c *Controller) Unlock() error {
	for i, r := range c.banks {
		if err := c.unlockBank(r); err != nil {
			for _, done := range c.banks[:i] {
				c.lockBank(done)
			}
			return err
		}
	}
	return nil
}

// Lock waits for pending operations to finish and sets the lock bit of every
// register set.
func (c *Controller) Lock() {
	for _, r := range c.banks {
		c.lockBank(r)
	}
}
