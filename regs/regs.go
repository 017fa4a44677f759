// Package regs is the register access layer used by the flash driver. All
// accesses are 32 bits wide and go through a Bus, which can be real memory
// mapped hardware or a simulated controller.
package regs

// Bus gives 32-bit access to a physical address space. It covers both the
// controller registers and the memory mapped flash array.
type Bus interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)
}

// Reg is a single 32-bit register on a bus.
type Reg struct {
	bus  Bus
	Addr uint32
}

func New(bus Bus, addr uint32) Reg {
	return Reg{bus: bus, Addr: addr}
}

func (r Reg) Read() uint32 {
	return r.bus.Read32(r.Addr)
}

func (r Reg) Write(value uint32) {
	r.bus.Write32(r.Addr, value)
}

// Modify performs a read-modify-write, clearing the bits in clear before
// setting the bits in set.
func (r Reg) Modify(clear uint32, set uint32) {
	r.bus.Write32(r.Addr, r.Read()&^clear|set)
}

func (r Reg) Set(mask uint32) {
	r.Modify(0, mask)
}

func (r Reg) Clear(mask uint32) {
	r.Modify(mask, 0)
}

// IsSet reports whether any bit of mask is set.
func (r Reg) IsSet(mask uint32) bool {
	return r.Read()&mask != 0
}

// Valid reports whether the register is attached to a bus.
func (r Reg) Valid() bool {
	return r.bus != nil
}

// Field is a multi-bit field inside a register.
type Field struct {
	Shift uint8
	Width uint8
}

func (f Field) Mask() uint32 {
	return (uint32(1)<<f.Width - 1) << f.Shift
}

// Bits returns value placed in the field position, truncated to the field width.
func (f Field) Bits(value uint32) uint32 {
	return value << f.Shift & f.Mask()
}

// Get extracts the field from a register value.
func (f Field) Get(reg uint32) uint32 {
	return reg & f.Mask() >> f.Shift
}
