package main

import (
	"fmt"
	"strings"

	"github.com/BertoldVdb/mcuflash/image"
	"github.com/BertoldVdb/mcuflash/tasks"
	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/fatih/color"
	"github.com/retroenv/retrogolib/log"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed, color.Bold)
)

func bankArg(n int) (variant.Bank, error) {
	if n != 1 && n != 2 {
		return variant.B1, fmt.Errorf("bank must be 1 or 2, not %d", n)
	}
	return variant.Bank(n - 1), nil
}

func withSession(g *Globals, fn func(s *session) error) error {
	s, err := g.open()
	if err != nil {
		return err
	}

	err = fn(s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func showProgress(t *tasks.Tasks, quiet bool) {
	if quiet {
		return
	}
	t.Progress = func(done int, total int) {
		fmt.Printf("\r%d/%d", done, total)
		if done == total {
			fmt.Println()
		}
	}
}

type VariantsCmd struct{}

func (c *VariantsCmd) Run(g *Globals) error {
	titleColor.Printf("%-6s %-8s %-10s %-6s %s\n", "NAME", "FAMILY", "SIZE", "BANKS", "DESCRIPTION")
	for _, p := range variant.Profiles() {
		banks := fmt.Sprint(p.Banks)
		if p.DualBankCapable {
			banks += "*"
		}
		fmt.Printf("%-6s %-8s %-10s %-6s %s\n", p.Name, p.Family, fmt.Sprintf("%dK", p.Size()/1024), banks, p.Description)
	}
	fmt.Println("* dual bank mode is selected by an option bit")
	return nil
}

type InfoCmd struct{}

func (c *InfoCmd) Run(g *Globals) error {
	return withSession(g, func(s *session) error {
		fc := s.flash
		p := fc.Profile()
		mode := fc.DualBank()

		titleColor.Printf("%s: %s\n", p.Name, p.Description)
		fmt.Printf("Flash:    %08x-%08x (%dK)\n", p.FlashBase, p.FlashBase+p.Size()-1, p.Size()/1024)
		fmt.Printf("Mode:     %s\n", mode)
		fmt.Printf("Units:    %d %ss per bank, %d bytes per word\n", p.Units, p.UnitName(), p.WordSize)

		for b := 0; b < p.AddressBanks(mode); b++ {
			bank := variant.Bank(b)
			fmt.Printf("Bank %s:  %08x, %dK\n", bank, fc.Address(0, bank), p.BankSize(mode)/1024)
		}

		regSets := 1
		if p.PerBankRegisters() {
			regSets = p.Banks
		}
		for b := 0; b < regSets; b++ {
			bank := variant.Bank(b)
			status := fc.Status(bank)
			names := p.Bits.ErrorNames(status)
			if len(names) == 0 {
				okColor.Printf("Status %s: %08x\n", bank, status)
			} else {
				failColor.Printf("Status %s: %08x [%s]\n", bank, status, strings.Join(names, " "))
			}
		}
		return nil
	})
}

type EraseCmd struct {
	All   bool  `help:"Erase the complete flash."`
	Bank  int   `short:"b" default:"1" help:"Bank (1 or 2) of the pages or sectors, or the bank to erase when no index is given."`
	Units []int `arg:"" optional:"" help:"Page or sector indices."`
}

func (c *EraseCmd) Run(g *Globals) error {
	bank, err := bankArg(c.Bank)
	if err != nil {
		return err
	}

	return withSession(g, func(s *session) error {
		switch {
		case c.All:
			if err := s.tasks.EraseAll(); err != nil {
				return err
			}
			okColor.Println("Flash erased")

		case len(c.Units) == 0:
			if err := s.flash.EraseBank(bank); err != nil {
				return err
			}
			okColor.Printf("Bank %s erased\n", bank)

		default:
			unit := s.flash.Profile().UnitName()
			for _, index := range c.Units {
				if err := s.flash.EraseUnit(index, bank); err != nil {
					return fmt.Errorf("erase %s %s/%d: %w", unit, bank, index, err)
				}
				s.logger.Info("Erased", log.String("unit", unit), log.Stringer("bank", bank), log.Int("index", index))
			}
		}
		return nil
	})
}

type ImageArgs struct {
	File    string `arg:"" type:"existingfile" help:"Binary or Intel HEX image."`
	Base    uint32 `help:"Load address of binary images, defaults to the start of flash."`
	Check   bool   `help:"Require a valid vector table and checksum trailer."`
	Padding uint8  `default:"255" help:"Fill value for gaps in HEX files."`
}

func (a *ImageArgs) load(s *session) (*image.Image, error) {
	base := a.Base
	if base == 0 {
		base = s.flash.Profile().FlashBase
	}

	img, err := image.LoadFile(a.File, base, a.Padding)
	if err != nil {
		return nil, err
	}

	if a.Check {
		if err := image.Validate(img); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("Loaded image",
		log.String("file", a.File),
		log.Hex("base", img.Base),
		log.Int("length", len(img.Data)))
	return img, nil
}

type WriteCmd struct {
	ImageArgs

	NoVerify bool `help:"Skip read back verification."`
}

func (c *WriteCmd) Run(g *Globals) error {
	return withSession(g, func(s *session) error {
		img, err := c.load(s)
		if err != nil {
			return err
		}

		showProgress(s.tasks, g.Quiet)
		if err := s.tasks.WriteImage(img, !c.NoVerify); err != nil {
			return err
		}
		okColor.Printf("Wrote %d bytes at %08x\n", len(img.Data), img.Base)
		return nil
	})
}

type ProgramCmd struct {
	ImageArgs
}

func (c *ProgramCmd) Run(g *Globals) error {
	return withSession(g, func(s *session) error {
		img, err := c.load(s)
		if err != nil {
			return err
		}

		showProgress(s.tasks, g.Quiet)
		written, err := s.tasks.Program(img)
		if err != nil {
			return err
		}
		if written {
			okColor.Printf("Programmed %d bytes at %08x\n", len(img.Data), img.Base)
		} else {
			okColor.Println("Flash already up to date")
		}
		return nil
	})
}

type VerifyCmd struct {
	ImageArgs
}

func (c *VerifyCmd) Run(g *Globals) error {
	return withSession(g, func(s *session) error {
		img, err := c.load(s)
		if err != nil {
			return err
		}

		current, err := s.tasks.ReadImage(img.Base, len(img.Data))
		if err != nil {
			return err
		}

		for i := range img.Data {
			if current.Data[i] != img.Data[i] {
				failColor.Printf("Mismatch at %08x: %02x, expected %02x\n", img.Base+uint32(i), current.Data[i], img.Data[i])
				return tasks.ErrorVerify
			}
		}
		okColor.Println("Flash matches image")
		return nil
	})
}

type ReadCmd struct {
	Output string `arg:"" type:"path" help:"Output file, .hex for Intel HEX, otherwise raw binary."`
	Base   uint32 `help:"First address to read, defaults to the start of flash."`
	Size   int    `help:"Number of bytes to read, defaults to the rest of the flash."`
}

func (c *ReadCmd) Run(g *Globals) error {
	return withSession(g, func(s *session) error {
		p := s.flash.Profile()

		base := c.Base
		if base == 0 {
			base = p.FlashBase
		}
		if base < p.FlashBase || base-p.FlashBase >= p.Size() {
			return image.ErrorOutsideFlash
		}

		size := c.Size
		if size == 0 {
			size = int(p.Size() - (base - p.FlashBase))
		}

		img, err := s.tasks.ReadImage(base, size)
		if err != nil {
			return err
		}

		if err := img.SaveFile(c.Output); err != nil {
			return fmt.Errorf("saving %s: %w", c.Output, err)
		}
		okColor.Printf("Read %d bytes from %08x\n", len(img.Data), img.Base)
		return nil
	})
}
