package variant

// Address translates a bank and page or sector index into the physical
// address of its first byte. It never fails: an index outside the part gives
// an address that is meaningless but safe to compute.
func (p *Profile) Address(bank Bank, index int, mode DualBank) uint32 {
	switch {
	case p.SectorOffsets != nil:
		last := len(p.SectorOffsets) - 1
		if index >= 0 && index <= last {
			return p.FlashBase + p.SectorOffsets[index]
		}
		return p.FlashBase + p.SectorOffsets[last] + uint32(index-last)*p.UnitSize

	case p.DualBankCapable && mode == Single:
		/* The two halves merge into one bank of double sized pages */
		return p.FlashBase + uint32(index)*2*p.UnitSize

	case p.Banks > 1 || p.BankBase[B1] != 0:
		return p.BankBase[bank&1] + uint32(index)*p.UnitSize
	}

	return p.FlashBase + uint32(index)*p.UnitSize
}

// UnitSizeAt returns the size of a page or sector in the given mode.
func (p *Profile) UnitSizeAt(index int, mode DualBank) uint32 {
	if p.SectorOffsets != nil && index >= 0 && index < len(p.SectorOffsets)-1 {
		return p.SectorOffsets[index+1] - p.SectorOffsets[index]
	}
	if p.DualBankCapable && mode == Single {
		return 2 * p.UnitSize
	}
	return p.UnitSize
}

// AddressBanks is the number of separately addressed banks in mode.
func (p *Profile) AddressBanks(mode DualBank) int {
	if p.DualBankCapable && mode == Single {
		return 1
	}
	return p.Banks
}

// BankSize is the number of bytes addressed through one bank in mode.
func (p *Profile) BankSize(mode DualBank) uint32 {
	var size uint32
	for i := 0; i < p.Units; i++ {
		size += p.UnitSizeAt(i, mode)
	}
	return size
}

// Size is the total flash size.
func (p *Profile) Size() uint32 {
	return p.BankSize(Dual) * uint32(p.Banks)
}

// ValidIndex reports whether index names an existing unit of bank. In single
// bank mode the bank is not part of the address and both values are accepted.
func (p *Profile) ValidIndex(bank Bank, index int) bool {
	return p.HasBank(bank) && index >= 0 && index < p.Units
}

// Locate is the inverse of Address: it finds the bank and unit containing
// addr. ok is false when addr is not inside the flash.
func (p *Profile) Locate(addr uint32, mode DualBank) (bank Bank, index int, ok bool) {
	for b := 0; b < p.AddressBanks(mode); b++ {
		bank := Bank(b)
		base := p.Address(bank, 0, mode)
		if addr < base || addr-base >= p.BankSize(mode) {
			continue
		}

		for i := 0; i < p.Units; i++ {
			start := p.Address(bank, i, mode)
			if addr >= start && addr-start < p.UnitSizeAt(i, mode) {
				return bank, i, true
			}
		}
	}
	return B1, 0, false
}
