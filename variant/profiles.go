package variant

import (
	"sort"
	"strings"

	"github.com/BertoldVdb/mcuflash/regs"
)

var f3Bits = Bits{
	Busy: 1 << 0,
	EOP:  1 << 5,
	Errors: []ErrorBit{
		{"PGERR", 1 << 2},
		{"WRPRTERR", 1 << 4},
	},

	Lock:      1 << 7,
	PG:        1 << 0,
	PER:       1 << 1,
	Start:     1 << 6,
	MassErase: [2]uint32{1 << 2},
}

var f4Bits = Bits{
	Busy: 1 << 16,
	EOP:  1 << 0,
	Errors: []ErrorBit{
		{"OPERR", 1 << 1},
		{"WRPERR", 1 << 4},
		{"PGAERR", 1 << 5},
		{"PGPERR", 1 << 6},
		{"PGSERR", 1 << 7},
	},

	Lock:      1 << 31,
	PG:        1 << 0,
	SER:       1 << 1,
	Start:     1 << 16,
	PSIZE:     2 << 8, /* x32 parallelism */
	Select:    regs.Field{Shift: 3, Width: 4},
	MassErase: [2]uint32{1 << 2},
}

/* Common to L4, G0, G4 and WL */
var l4Errors = []ErrorBit{
	{"OPERR", 1 << 1},
	{"PROGERR", 1 << 3},
	{"WRPERR", 1 << 4},
	{"PGAERR", 1 << 5},
	{"SIZERR", 1 << 6},
	{"PGSERR", 1 << 7},
	{"MISERR", 1 << 8},
	{"FASTERR", 1 << 9},
	{"RDERR", 1 << 14},
	{"OPTVERR", 1 << 15},
}

func l4StyleBits(pnbWidth uint8, dual bool) Bits {
	b := Bits{
		Busy:   1 << 16,
		EOP:    1 << 0,
		Errors: l4Errors,

		Lock:      1 << 31,
		PG:        1 << 0,
		PER:       1 << 1,
		Start:     1 << 16,
		Select:    regs.Field{Shift: 3, Width: pnbWidth},
		MassErase: [2]uint32{1 << 2},
		ECC:       1<<31 | 1<<30,
	}
	if dual {
		b.BKER = 1 << 11
		b.MassErase[B2] = 1 << 15
	}
	return b
}

func withoutError(errs []ErrorBit, name string) []ErrorBit {
	var out []ErrorBit
	for _, e := range errs {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}

func h7Bits(snbWidth uint8) Bits {
	return Bits{
		Busy:      1 << 0,
		QueueWait: 1 << 2,
		EOP:       1 << 16,
		Errors: []ErrorBit{
			{"WRPERR", 1 << 17},
			{"PGSERR", 1 << 18},
			{"STRBERR", 1 << 19},
			{"INCERR", 1 << 21},
			{"OPERR", 1 << 22},
			{"RDPERR", 1 << 23},
			{"RDSERR", 1 << 24},
			{"SNECCERR", 1 << 25},
			{"DBECCERR", 1 << 26},
		},

		Lock:      1 << 0,
		PG:        1 << 1,
		SER:       1 << 2,
		Start:     1 << 7,
		Select:    regs.Field{Shift: 8, Width: snbWidth},
		MassErase: [2]uint32{1 << 3, 1 << 3}, /* BER, one per register set */
		ECC:       1<<25 | 1<<26,
	}
}

var l4Layout = Layout{KEYR: 0x08, SR: 0x10, CR: 0x14, ECCR: 0x18, OPTR: 0x20}

var h7Layout = Layout{KEYR: 0x04, CR: 0x0C, SR: 0x10, CCR: 0x14, BankStride: 0x100}

const (
	kb = 1024
)

var profiles = []*Profile{
	{
		Name: "f303", Description: "STM32F303xC, 256K, 2K pages", Family: FamilyF3,
		RegBase: 0x4002_2000, FlashBase: 0x0800_0000,
		UnitSize: 2 * kb, Units: 128, Banks: 1,
		WordSize: 8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectAddress, EraseWaitEOP: true, Clear: ClearModify,
		Layout: Layout{KEYR: 0x04, SR: 0x0C, CR: 0x10, AR: 0x14},
		Bits:   f3Bits,
	},
	{
		Name: "f407", Description: "STM32F407xG, 1M, 16K/64K/128K sectors", Family: FamilyF4,
		RegBase: 0x4002_3C00, FlashBase: 0x0800_0000,
		UnitSize: 128 * kb, Units: 12, Banks: 1,
		SectorOffsets: []uint32{
			0, 16 * kb, 32 * kb, 48 * kb, 64 * kb,
			128 * kb, 256 * kb, 384 * kb, 512 * kb, 640 * kb, 768 * kb, 896 * kb,
		},
		Sectors:  true,
		WordSize: 8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectSector, Clear: ClearModify,
		Layout: Layout{KEYR: 0x04, SR: 0x0C, CR: 0x10},
		Bits:   f4Bits,
	},
	{
		Name: "l476", Description: "STM32L476xG, 1M, two fixed banks of 2K pages", Family: FamilyL4,
		RegBase: 0x4002_2000, FlashBase: 0x0800_0000,
		UnitSize: 2 * kb, Units: 256, Banks: 2,
		BankBase: [2]uint32{0x0800_0000, 0x0808_0000},
		WordSize: 8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectPage, Clear: ClearWrite,
		Layout: l4Layout,
		Bits:   l4StyleBits(8, true),
	},
	{
		Name: "g071", Description: "STM32G071xB, 128K, 2K pages", Family: FamilyG0,
		RegBase: 0x4002_2000, FlashBase: 0x0800_0000,
		UnitSize: 2 * kb, Units: 64, Banks: 1,
		WordSize: 8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectPage, Clear: ClearWrite,
		Layout: l4Layout,
		Bits:   l4StyleBits(7, false),
	},
	{
		Name: "g431", Description: "STM32G431xB, 128K, 2K pages", Family: FamilyG4,
		RegBase: 0x4002_2000, FlashBase: 0x0800_0000,
		UnitSize: 2 * kb, Units: 64, Banks: 1,
		WordSize: 8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectPage, Clear: ClearWrite,
		Layout: l4Layout,
		Bits:   l4StyleBits(7, false),
	},
	{
		Name: "g474", Description: "STM32G474xE, 512K, DBANK selects 2x128 2K or 128 4K pages", Family: FamilyG4,
		RegBase: 0x4002_2000, FlashBase: 0x0800_0000,
		UnitSize: 2 * kb, Units: 128, Banks: 2,
		DualBankCapable: true,
		BankBase:        [2]uint32{0x0800_0000, 0x0804_0000},
		WordSize:        8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectPage, Clear: ClearWrite,
		Layout: l4Layout,
		Bits: func() Bits {
			b := l4StyleBits(7, true)
			b.DBank = 1 << 22
			return b
		}(),
	},
	{
		Name: "wl55", Description: "STM32WL55xC, 256K, 2K pages", Family: FamilyWL,
		RegBase: 0x5800_4000, FlashBase: 0x0800_0000,
		UnitSize: 2 * kb, Units: 128, Banks: 1,
		WordSize: 8, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectPage, Clear: ClearWrite,
		Layout: l4Layout,
		Bits: func() Bits {
			b := l4StyleBits(7, false)
			b.Errors = withoutError(l4Errors, "MISERR")
			return b
		}(),
	},
	{
		Name: "h743", Description: "STM32H743xI, 2M, two banks of 128K sectors", Family: FamilyH7,
		RegBase: 0x5200_2000, FlashBase: 0x0800_0000,
		UnitSize: 128 * kb, Units: 8, Banks: 2,
		BankBase: [2]uint32{0x0800_0000, 0x0810_0000},
		Sectors:  true,
		WordSize: 32, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectSector, Clear: ClearRegister,
		Layout: h7Layout,
		Bits:   h7Bits(3),
	},
	{
		Name: "h7a3", Description: "STM32H7A3xI, 2M, two banks of 8K sectors", Family: FamilyH7,
		RegBase: 0x5200_2000, FlashBase: 0x0800_0000,
		UnitSize: 8 * kb, Units: 128, Banks: 2,
		BankBase: [2]uint32{0x0800_0000, 0x0810_0000},
		Sectors:  true,
		WordSize: 16, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectSector, Clear: ClearRegister,
		Layout: h7Layout,
		Bits:   h7Bits(7),
	},
	{
		Name: "h747", Description: "STM32H747xI Cortex-M7 view, bank 1 only", Family: FamilyH7,
		RegBase: 0x5200_2000, FlashBase: 0x0800_0000,
		UnitSize: 128 * kb, Units: 8, Banks: 1,
		BankBase: [2]uint32{0x0800_0000},
		Sectors:  true,
		WordSize: 32, ReadWidth: 4, Erased: 0xFF,
		EraseSelect: SelectSector, Clear: ClearRegister,
		Layout: h7Layout,
		Bits:   h7Bits(3),
	},
}

// Lookup finds a profile by name, ignoring case and an "stm32" prefix.
func Lookup(name string) (*Profile, bool) {
	name = strings.TrimPrefix(strings.ToLower(name), "stm32")
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Profiles returns all known profiles sorted by name.
func Profiles() []*Profile {
	out := make([]*Profile, len(profiles))
	copy(out, profiles)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
