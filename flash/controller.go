// Package flash drives the embedded flash controller of the supported
// microcontrollers. Every mutating operation follows the same protocol:
// unlock the registers, refuse to start while busy, clear stale error flags,
// run the variant specific sequence, check the status and lock again.
//
// A Controller owns the hardware exclusively and is not safe for concurrent
// use.
package flash

import (
	"github.com/BertoldVdb/mcuflash/regs"
	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/log"
)

type bankRegs struct {
	bank variant.Bank

	keyr regs.Reg
	sr   regs.Reg
	cr   regs.Reg
	ar   regs.Reg
	ccr  regs.Reg
}

type Controller struct {
	bus regs.Bus
	p   *variant.Profile

	banks []*bankRegs
	optr  regs.Reg
	eccr  regs.Reg

	dual      variant.DualBank
	wait      Waiter
	logger    *log.Logger
	unchecked bool
}

type Option func(*Controller)

func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithWaiter(w Waiter) Option {
	return func(c *Controller) {
		c.wait = w
	}
}

// WithDualBank sets the initial addressing mode. It must match the DBANK
// option bit of the part, see SyncDualBank.
func WithDualBank(mode variant.DualBank) Option {
	return func(c *Controller) {
		c.dual = mode
	}
}

// WithUncheckedRange disables index and length validation, leaving invalid
// requests to the hardware.
func WithUncheckedRange() Option {
	return func(c *Controller) {
		c.unchecked = true
	}
}

func New(bus regs.Bus, p *variant.Profile, opts ...Option) *Controller {
	c := &Controller{
		bus:  bus,
		p:    p,
		dual: variant.Single,
		wait: Spin{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = log.NewWithConfig(log.DefaultConfig())
	}

	n := 1
	if p.PerBankRegisters() {
		n = p.Banks
	}

	l := p.Layout
	reg := func(base uint32, off uint32) regs.Reg {
		if off == 0 {
			return regs.Reg{}
		}
		return regs.New(bus, base+off)
	}

	for i := 0; i < n; i++ {
		base := p.RegisterBase(variant.Bank(i))
		c.banks = append(c.banks, &bankRegs{
			bank: variant.Bank(i),
			keyr: reg(base, l.KEYR),
			sr:   reg(base, l.SR),
			cr:   reg(base, l.CR),
			ar:   reg(base, l.AR),
			ccr:  reg(base, l.CCR),
		})
	}

	c.optr = reg(p.RegBase, l.OPTR)
	c.eccr = reg(p.RegBase, l.ECCR)

	return c
}

func (c *Controller) Profile() *variant.Profile {
	return c.p
}

// regs returns the register set that controls bank.
func (c *Controller) regs(bank variant.Bank) *bankRegs {
	if int(bank) < len(c.banks) {
		return c.banks[bank]
	}
	return c.banks[0]
}

// Status returns the raw status register of the register set controlling bank.
func (c *Controller) Status(bank variant.Bank) uint32 {
	return c.regs(bank).sr.Read()
}

func (c *Controller) DualBank() variant.DualBank {
	return c.dual
}

// SetDualBank changes the addressing mode used by later calls. It does not
// touch the option bytes.
func (c *Controller) SetDualBank(mode variant.DualBank) {
	c.dual = mode
}

// SyncDualBank reads the DBANK option bit and adopts the mode it selects.
// Parts without the option keep their current mode.
func (c *Controller) SyncDualBank() variant.DualBank {
	if !c.p.DualBankCapable || !c.optr.Valid() {
		return c.dual
	}

	c.dual = variant.Single
	if c.optr.IsSet(c.p.Bits.DBank) {
		c.dual = variant.Dual
	}

	c.logger.Debug("Dual bank option", log.Stringer("mode", c.dual))
	return c.dual
}

// Address translates a bank and page or sector index in the current mode.
func (c *Controller) Address(index int, bank variant.Bank) uint32 {
	return c.p.Address(bank, index, c.dual)
}

func (c *Controller) checkIndex(index int, bank variant.Bank) error {
	if c.unchecked || c.p.ValidIndex(bank, index) {
		return nil
	}
	return ErrorPageOutOfRange
}

func (c *Controller) waitIdle(r *bankRegs) error {
	mask := c.p.Bits.Busy | c.p.Bits.QueueWait
	return c.wait.Wait(func() bool {
		return !r.sr.IsSet(mask)
	})
}

func (c *Controller) statusError(r *bankRegs) error {
	status := r.sr.Read()
	if status&c.p.Bits.ErrorMask() == 0 {
		return nil
	}

	err := &StatusError{
		Status: status,
		Flags:  c.p.Bits.ErrorNames(status),
	}
	c.logger.Debug("Flash status error",
		log.Stringer("bank", r.bank),
		log.Hex("status", status))
	return err
}

// protected runs action on the register set of bank with the registers
// unlocked, and always leaves them locked.
func (c *Controller) protected(name string, bank variant.Bank, action func(r *bankRegs) error) (err error) {
	r := c.regs(bank)

	c.logger.Debug("Flash operation", log.String("op", name), log.Stringer("bank", bank))

	busy := false
	defer func() {
		if busy {
			/* Nothing of ours is in flight, lock without waiting */
			r.cr.Set(c.p.Bits.Lock)
		} else {
			c.lockBank(r)
		}

		if err != nil {
			c.logger.Debug("Flash operation failed", log.String("op", name), log.Err(err))
		}
	}()

	if err := c.unlockBank(r); err != nil {
		return err
	}

	if r.sr.IsSet(c.p.Bits.Busy | c.p.Bits.QueueWait) {
		busy = true
		return ErrorBusy
	}

	c.clearErrors(r)

	if err := action(r); err != nil {
		return err
	}

	return c.statusError(r)
}
