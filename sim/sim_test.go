package sim

import (
	"bytes"
	"testing"

	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/retroenv/retrogolib/assert"
)

type regAddrs struct {
	keyr, sr, cr uint32
}

func addrs(p *variant.Profile, bank variant.Bank) regAddrs {
	base := p.RegisterBase(bank)
	return regAddrs{
		keyr: base + p.Layout.KEYR,
		sr:   base + p.Layout.SR,
		cr:   base + p.Layout.CR,
	}
}

func unlocked(t *testing.T, name string) (*Controller, regAddrs) {
	t.Helper()

	p, ok := variant.Lookup(name)
	assert.True(t, ok)

	c := New(p, WithLatency(0))
	r := addrs(p, variant.B1)
	c.Write32(r.keyr, Key1)
	c.Write32(r.keyr, Key2)
	assert.False(t, c.Locked(variant.B1))
	return c, r
}

func TestKeySequence(t *testing.T) {
	p, _ := variant.Lookup("l476")
	c := New(p)
	r := addrs(p, variant.B1)

	assert.True(t, c.Locked(variant.B1))
	assert.Equal(t, p.Bits.Lock, c.Read32(r.cr)&p.Bits.Lock)

	/* Keys in the wrong order lock out further attempts */
	c.Write32(r.keyr, Key2)
	c.Write32(r.keyr, Key1)
	c.Write32(r.keyr, Key2)
	assert.True(t, c.Locked(variant.B1))

	c.Reset()
	c.Write32(r.keyr, Key1)
	c.Write32(r.keyr, Key2)
	assert.False(t, c.Locked(variant.B1))
	assert.Equal(t, uint32(0), c.Read32(r.cr)&p.Bits.Lock)

	/* Writing keys while unlocked is a sequence error */
	c.Write32(r.keyr, Key1)
	assert.True(t, c.Locked(variant.B1))
}

func TestLockedControlIgnored(t *testing.T) {
	p, _ := variant.Lookup("g071")
	c := New(p)
	r := addrs(p, variant.B1)

	c.Write32(r.cr, p.Bits.PER|p.Bits.Start)
	assert.Equal(t, 0, c.Erases)
	assert.Equal(t, p.Bits.Lock, c.Read32(r.cr))
}

func TestBusyLatency(t *testing.T) {
	c, r := unlocked(t, "g071")
	p := c.Profile()
	c.Latency = 2
	c.Mem()[0] = 0

	c.Write32(r.cr, p.Bits.PER|p.Bits.Select.Bits(0)|p.Bits.Start)
	assert.Equal(t, 1, c.Erases)
	assert.Equal(t, byte(0xFF), c.Mem()[0])

	assert.True(t, c.Read32(r.sr)&p.Bits.Busy != 0)
	assert.True(t, c.Read32(r.sr)&p.Bits.Busy != 0)
	status := c.Read32(r.sr)
	assert.Equal(t, uint32(0), status&p.Bits.Busy)
	assert.Equal(t, p.Bits.EOP, status&p.Bits.EOP)

	c.SetBusy(variant.B1, true)
	assert.True(t, c.Read32(r.sr)&p.Bits.Busy != 0)
	c.SetBusy(variant.B1, false)
	assert.Equal(t, uint32(0), c.Read32(r.sr)&p.Bits.Busy)
}

func TestProgramClearsBits(t *testing.T) {
	c, r := unlocked(t, "g071")
	p := c.Profile()
	base := p.FlashBase

	/* Without PG a flash write is a sequence error */
	c.Write32(base, 0)
	assert.True(t, c.Flags(variant.B1)&c.errorFlag("PGSERR") != 0)
	c.Write32(r.sr, 0xFFFFFFFF)
	assert.Equal(t, uint32(0), c.Flags(variant.B1))

	c.Write32(r.cr, p.Bits.PG)
	c.Write32(base, 0x11223344)
	assert.Equal(t, 0, c.Programs)
	c.Write32(base+4, 0x55667788)
	assert.Equal(t, 1, c.Programs)
	assert.Equal(t, uint32(0x11223344), c.Read32(base))

	/* Programming over data is refused */
	c.Write32(base, 0)
	c.Write32(base+4, 0)
	assert.True(t, c.Flags(variant.B1)&c.errorFlag("PROGERR") != 0)
	assert.Equal(t, uint32(0x55667788), c.Read32(base+4))

	/* Rows must be written in order */
	c.Write32(base+12, 0)
	assert.True(t, c.Flags(variant.B1)&c.errorFlag("PGAERR") != 0)
}

func TestClearIdioms(t *testing.T) {
	for _, name := range []string{"f303", "g071", "h743"} {
		p, _ := variant.Lookup(name)
		c := New(p)
		r := addrs(p, variant.B1)
		mask := p.Bits.ErrorMask()

		c.RaiseFlags(variant.B1, mask)
		if p.Clear == variant.ClearRegister {
			c.Write32(r.sr, mask)
			assert.Equal(t, mask, c.Flags(variant.B1), name)
			c.Write32(p.RegisterBase(variant.B1)+p.Layout.CCR, mask)
		} else {
			c.Write32(r.sr, mask)
		}
		assert.Equal(t, uint32(0), c.Flags(variant.B1), name)
	}
}

func TestPerBankRegisters(t *testing.T) {
	p, _ := variant.Lookup("h743")
	c := New(p, WithLatency(0))
	r2 := addrs(p, variant.B2)

	c.Write32(r2.keyr, Key1)
	c.Write32(r2.keyr, Key2)
	assert.True(t, c.Locked(variant.B1))
	assert.False(t, c.Locked(variant.B2))

	for i := range c.Mem() {
		c.Mem()[i] = 0
	}
	c.Write32(r2.cr, p.Bits.MassErase[variant.B2]|p.Bits.Start)
	assert.True(t, bytes.Equal(c.Mem()[:len(c.Mem())/2], make([]byte, len(c.Mem())/2)))
	assert.Equal(t, byte(0xFF), c.Mem()[len(c.Mem())/2])
	assert.Equal(t, byte(0xFF), c.Mem()[len(c.Mem())-1])
}

func TestECCInjection(t *testing.T) {
	p, _ := variant.Lookup("l476")
	c := New(p)
	eccr := p.RegBase + p.Layout.ECCR

	c.InjectECC(p.FlashBase+0x100, false)
	c.Read32(p.FlashBase + 0x100)
	assert.Equal(t, uint32(1<<30), c.Read32(eccr))

	c.InjectECC(p.FlashBase+0x200, true)
	c.Read32(p.FlashBase + 0x200)
	assert.Equal(t, uint32(1<<31|1<<30), c.Read32(eccr))

	c.Write32(eccr, 1<<31|1<<30)
	assert.Equal(t, uint32(0), c.Read32(eccr))
}

func TestDualBankOption(t *testing.T) {
	p, _ := variant.Lookup("g474")
	optr := p.RegBase + p.Layout.OPTR

	c := New(p)
	assert.Equal(t, uint32(0), c.Read32(optr))
	c.SetDualBank(variant.Dual)
	assert.Equal(t, p.Bits.DBank, c.Read32(optr))

	l4, _ := variant.Lookup("l476")
	fixed := New(l4, WithDualBank(variant.Dual))
	assert.Equal(t, variant.Single, fixed.DualBank())
}

func TestLoadSave(t *testing.T) {
	p, _ := variant.Lookup("g071")
	c := New(p)

	assert.NoError(t, c.Load(bytes.NewReader([]byte{1, 2, 3})))
	assert.Equal(t, uint32(0xFF030201), c.Read32(p.FlashBase))

	var out bytes.Buffer
	assert.NoError(t, c.Save(&out))
	assert.Equal(t, int(p.Size()), out.Len())
	assert.True(t, bytes.Equal(c.Mem(), out.Bytes()))
}

func TestUnmapped(t *testing.T) {
	p, _ := variant.Lookup("g071")
	c := New(p)
	assert.Equal(t, uint32(0xFFFFFFFF), c.Read32(0x2000_0000))
	c.Write32(0x2000_0000, 0)
}
