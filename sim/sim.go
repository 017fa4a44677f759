// Package sim models a flash controller and its memory array closely enough
// to run the driver against it without hardware. It implements regs.Bus for
// any variant.Profile: the key sequence and lock bit, busy latency, the status
// and error flags with the family's clear idiom, the erase and program rules
// of the flash cells and injected ECC faults.
package sim

import (
	"math/bits"

	"github.com/BertoldVdb/mcuflash/variant"
)

const (
	Key1 = 0x45670123
	Key2 = 0xCDEF89AB
)

// regSet is the state behind one KEYR/SR/CR group.
type regSet struct {
	bank variant.Bank

	locked   bool
	keyStage int
	lockout  bool

	cr uint32
	sr uint32
	ar uint32

	busy      int
	forceBusy bool

	row     []byte
	rowAddr uint32
	rowFill int
}

type Controller struct {
	p    *variant.Profile
	mode variant.DualBank

	mem   []byte
	sets  []*regSet
	eccr  uint32
	ecc   map[uint32]bool
	stuck map[uint32]uint32

	// Latency is the number of status reads an operation stays busy for.
	Latency int

	Erases   int
	Programs int
}

type Option func(*Controller)

func WithLatency(polls int) Option {
	return func(c *Controller) {
		c.Latency = polls
	}
}

// WithDualBank sets the DBANK option bit at power up.
func WithDualBank(mode variant.DualBank) Option {
	return func(c *Controller) {
		c.SetDualBank(mode)
	}
}

func New(p *variant.Profile, opts ...Option) *Controller {
	c := &Controller{
		p:       p,
		mem:     make([]byte, p.Size()),
		ecc:     make(map[uint32]bool),
		stuck:   make(map[uint32]uint32),
		Latency: 2,
	}

	for i := range c.mem {
		c.mem[i] = p.Erased
	}

	n := 1
	if p.PerBankRegisters() {
		n = p.Banks
	}
	for i := 0; i < n; i++ {
		c.sets = append(c.sets, &regSet{
			bank:   variant.Bank(i),
			locked: true,
			row:    make([]byte, p.WordSize),
		})
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) Profile() *variant.Profile {
	return c.p
}

// Reset is a power cycle of the controller: registers return to their reset
// values and a key sequence lockout is lifted. The memory array is kept.
func (c *Controller) Reset() {
	for _, s := range c.sets {
		*s = regSet{
			bank:   s.bank,
			locked: true,
			row:    s.row,
		}
	}
	c.eccr = 0
}

func (c *Controller) SetDualBank(mode variant.DualBank) {
	if c.p.DualBankCapable {
		c.mode = mode
	}
}

func (c *Controller) DualBank() variant.DualBank {
	return c.mode
}

func (c *Controller) set(bank variant.Bank) *regSet {
	if int(bank) < len(c.sets) {
		return c.sets[bank]
	}
	return c.sets[0]
}

// SetBusy keeps the busy flag of bank raised until it is turned off again.
func (c *Controller) SetBusy(bank variant.Bank, on bool) {
	c.set(bank).forceBusy = on
}

func (c *Controller) Locked(bank variant.Bank) bool {
	return c.set(bank).locked
}

// Flags returns the raw status flags of bank without consuming busy time.
func (c *Controller) Flags(bank variant.Bank) uint32 {
	return c.set(bank).sr
}

// RaiseFlags sets status flags of bank as if the hardware had reported them.
func (c *Controller) RaiseFlags(bank variant.Bank, mask uint32) {
	c.set(bank).sr |= mask
}

// InjectECC marks the word at addr as corrupt. Reading it raises the double
// or single error detection flag of the profile.
func (c *Controller) InjectECC(addr uint32, double bool) {
	c.ecc[addr&^3] = double
}

// InjectStuck makes the bits of mask in the word at addr read as zero.
func (c *Controller) InjectStuck(addr uint32, mask uint32) {
	c.stuck[addr&^3] |= mask
}

func (c *Controller) eccFlag(double bool) uint32 {
	mask := c.p.Bits.ECC
	if mask == 0 {
		return 0
	}
	if double {
		return 1 << (31 - bits.LeadingZeros32(mask))
	}
	return mask & -mask
}

/* First error flag of the profile with one of the given names */
func (c *Controller) errorFlag(names ...string) uint32 {
	for _, name := range names {
		for _, e := range c.p.Bits.Errors {
			if e.Name == name {
				return e.Mask
			}
		}
	}
	return 0
}

func (c *Controller) sequenceError() uint32 {
	return c.errorFlag("PGSERR", "PGERR")
}

func (c *Controller) decodeReg(addr uint32) (*regSet, uint32, bool) {
	for i, s := range c.sets {
		base := c.p.RegisterBase(variant.Bank(i))
		if addr >= base && addr-base < 0x100 {
			return s, addr - base, true
		}
	}
	return nil, 0, false
}

func (c *Controller) inFlash(addr uint32) bool {
	return addr >= c.p.FlashBase && uint64(addr-c.p.FlashBase)+4 <= uint64(len(c.mem))
}

func (c *Controller) Read32(addr uint32) uint32 {
	if c.inFlash(addr) {
		return c.readFlash(addr)
	}

	s, off, ok := c.decodeReg(addr)
	if !ok {
		return 0xFFFFFFFF
	}

	l := c.p.Layout
	b := c.p.Bits
	switch {
	case off == l.CR:
		if s.locked {
			return s.cr | b.Lock
		}
		return s.cr

	case off == l.SR:
		if s.forceBusy {
			return s.sr | b.Busy
		}
		if s.busy > 0 {
			s.busy--
			return s.sr | b.Busy | b.QueueWait
		}
		return s.sr

	case l.AR != 0 && off == l.AR:
		return s.ar

	case l.OPTR != 0 && off == l.OPTR:
		if c.mode == variant.Dual {
			return b.DBank
		}
		return 0

	case l.ECCR != 0 && off == l.ECCR:
		return c.eccr
	}

	return 0
}

func (c *Controller) Write32(addr uint32, value uint32) {
	if c.inFlash(addr) {
		c.program(addr, value)
		return
	}

	s, off, ok := c.decodeReg(addr)
	if !ok {
		return
	}

	l := c.p.Layout
	clearable := c.p.Bits.ErrorMask() | c.p.Bits.EOP
	switch {
	case off == l.KEYR:
		c.writeKey(s, value)

	case off == l.CR:
		c.writeControl(s, value)

	case off == l.SR:
		if c.p.Clear != variant.ClearRegister {
			s.sr &^= value & clearable
		}

	case l.CCR != 0 && off == l.CCR:
		s.sr &^= value & clearable

	case l.AR != 0 && off == l.AR:
		if !s.locked {
			s.ar = value
		}

	case l.ECCR != 0 && off == l.ECCR:
		c.eccr &^= value & c.p.Bits.ECC
	}
}

func (c *Controller) writeKey(s *regSet, value uint32) {
	if s.lockout {
		return
	}

	/* Any unexpected key write locks the register set until reset */
	switch {
	case s.locked && s.keyStage == 0 && value == Key1:
		s.keyStage = 1
	case s.locked && s.keyStage == 1 && value == Key2:
		s.keyStage = 0
		s.locked = false
	default:
		s.keyStage = 0
		s.locked = true
		s.lockout = true
	}
}

func (c *Controller) writeControl(s *regSet, value uint32) {
	if s.locked {
		return
	}

	b := c.p.Bits
	if value&b.Lock != 0 {
		s.locked = true
		s.keyStage = 0
		s.rowFill = 0
		s.cr = value &^ (b.Lock | b.Start)
		return
	}

	if value&b.PG == 0 {
		s.rowFill = 0
	}

	s.cr = value &^ b.Start
	if value&b.Start != 0 {
		c.startErase(s)
	}
}
