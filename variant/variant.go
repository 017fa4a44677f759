// Package variant describes the flash controllers of the supported
// microcontroller families: memory geometry, register layout, status bit
// assignments and the small differences in how each family sequences an
// erase or program operation.
package variant

import (
	"fmt"

	"github.com/BertoldVdb/mcuflash/regs"
)

type Family int

const (
	FamilyF3 Family = iota
	FamilyF4
	FamilyL4
	FamilyG0
	FamilyG4
	FamilyWL
	FamilyH7
)

func (f Family) String() string {
	switch f {
	case FamilyF3:
		return "F3"
	case FamilyF4:
		return "F4"
	case FamilyL4:
		return "L4"
	case FamilyG0:
		return "G0"
	case FamilyG4:
		return "G4"
	case FamilyWL:
		return "WL"
	case FamilyH7:
		return "H7"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Bank selects a physical half of the flash and, on parts with one register
// set per bank, the register set used.
type Bank uint8

const (
	B1 Bank = 0
	B2 Bank = 1
)

func (b Bank) String() string {
	return fmt.Sprintf("B%d", int(b)+1)
}

// DualBank is the addressing mode of parts with a DBANK option bit.
type DualBank int

const (
	Single DualBank = iota
	Dual
)

func (d DualBank) String() string {
	if d == Dual {
		return "dual"
	}
	return "single"
}

// EraseSelect is how a page or sector erase names its target.
type EraseSelect int

const (
	// SelectPage sets PER and the page number field (and BKER for bank 2).
	SelectPage EraseSelect = iota
	// SelectSector sets SER and the sector number field.
	SelectSector
	// SelectAddress sets PER and writes the page address to AR.
	SelectAddress
)

// ClearIdiom is how status flags are acknowledged.
type ClearIdiom int

const (
	// ClearModify writes the flag back into SR with a read-modify-write.
	ClearModify ClearIdiom = iota
	// ClearWrite writes only the flag into SR.
	ClearWrite
	// ClearRegister writes the flag into the separate clear register CCR.
	ClearRegister
)

// Layout holds register offsets relative to the register base of a bank.
// A zero offset means the register does not exist.
type Layout struct {
	KEYR uint32
	SR   uint32
	CR   uint32
	AR   uint32
	CCR  uint32
	OPTR uint32
	ECCR uint32

	// BankStride is the distance between per-bank register sets, zero when
	// both banks share one set.
	BankStride uint32
}

// ErrorBit names a status register error flag.
type ErrorBit struct {
	Name string
	Mask uint32
}

// Bits holds the bit assignments of a family.
type Bits struct {
	/* Status register */
	Busy      uint32
	QueueWait uint32
	EOP       uint32
	Errors    []ErrorBit

	/* Control register */
	Lock   uint32
	PG     uint32
	PER    uint32
	SER    uint32
	BKER   uint32
	Start  uint32
	PSIZE  uint32
	Select regs.Field

	// MassErase is the mass erase bit per bank. MassErase[B2] is zero on
	// parts where a single bit erases everything.
	MassErase [2]uint32

	// ECC detection flags, in ECCR when the layout has one, otherwise in SR.
	ECC uint32

	// DBank is the dual bank option bit in OPTR.
	DBank uint32
}

// ErrorMask is the union of all error flags.
func (b *Bits) ErrorMask() uint32 {
	var mask uint32
	for _, e := range b.Errors {
		mask |= e.Mask
	}
	return mask
}

// ErrorNames returns the names of the error flags set in status.
func (b *Bits) ErrorNames(status uint32) []string {
	var names []string
	for _, e := range b.Errors {
		if status&e.Mask != 0 {
			names = append(names, e.Name)
		}
	}
	return names
}

// Profile describes one controller variant.
type Profile struct {
	Name        string
	Description string
	Family      Family

	RegBase   uint32
	FlashBase uint32

	// UnitSize is the page or sector size. On parts with configurable dual
	// bank addressing it is the page size in dual bank mode.
	UnitSize uint32
	// Units is the number of pages or sectors per bank.
	Units int
	Banks int

	DualBankCapable bool
	BankBase        [2]uint32

	// SectorOffsets lists sector start offsets for parts with non-uniform
	// sectors. Sectors past the table are UnitSize long.
	SectorOffsets []uint32

	// Sectors is set when the erase unit is called a sector.
	Sectors bool

	// WordSize is the programming granularity in bytes.
	WordSize int
	// ReadWidth is the native read access size in bytes.
	ReadWidth int
	Erased    byte

	EraseSelect EraseSelect
	// EraseWaitEOP makes the erase sequence wait for and acknowledge EOP.
	EraseWaitEOP bool
	Clear        ClearIdiom

	Layout Layout
	Bits   Bits
}

func (p *Profile) String() string {
	return p.Name
}

// UnitName is "sector" or "page".
func (p *Profile) UnitName() string {
	if p.Sectors {
		return "sector"
	}
	return "page"
}

// HasBank reports whether bank exists on this part.
func (p *Profile) HasBank(bank Bank) bool {
	return int(bank) < p.Banks
}

// PerBankRegisters reports whether every bank has its own register set.
func (p *Profile) PerBankRegisters() bool {
	return p.Layout.BankStride != 0
}

// RegisterBase returns the register base used to control bank.
func (p *Profile) RegisterBase(bank Bank) uint32 {
	if !p.PerBankRegisters() {
		return p.RegBase
	}
	return p.RegBase + uint32(bank)*p.Layout.BankStride
}

// DualAddressing reports whether the two banks are separate windows in the
// given mode, which is also when bank 2 needs to be selected explicitly.
func (p *Profile) DualAddressing(mode DualBank) bool {
	if p.Banks < 2 {
		return false
	}
	return !p.DualBankCapable || mode == Dual
}
