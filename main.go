// Package main implements mcuflash, a tool to erase, program and read the
// embedded flash of microcontrollers through a memory mapped controller or
// a simulated one.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BertoldVdb/mcuflash/devmem"
	"github.com/BertoldVdb/mcuflash/flash"
	"github.com/BertoldVdb/mcuflash/regs"
	"github.com/BertoldVdb/mcuflash/sim"
	"github.com/BertoldVdb/mcuflash/tasks"
	"github.com/BertoldVdb/mcuflash/variant"
	"github.com/alecthomas/kong"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type Globals struct {
	Variant  string        `short:"m" default:"g431" help:"Controller variant, see 'variants'."`
	Backend  string        `enum:"sim,devmem,uio" default:"sim" help:"Hardware access: sim, devmem or uio."`
	SimFile  string        `name:"sim-file" type:"path" help:"File holding the simulated flash contents."`
	Devmem   string        `default:"/dev/mem" help:"Physical memory device for the devmem backend."`
	DualBank string        `name:"dual-bank" enum:"auto,single,dual" default:"auto" help:"Bank addressing: auto reads the option bit."`
	Timeout  time.Duration `default:"0s" help:"Give up waiting for the controller after this long, 0 waits forever."`
	Debug    bool          `help:"Enable debug logging."`
	Quiet    bool          `short:"q" help:"Only log errors."`

	Version kong.VersionFlag `help:"Print the version."`
}

type CLI struct {
	Globals

	Variants VariantsCmd `cmd:"" help:"List supported variants."`
	Info     InfoCmd     `cmd:"" help:"Show geometry and controller status."`
	Erase    EraseCmd    `cmd:"" help:"Erase pages, sectors, banks or everything."`
	Write    WriteCmd    `cmd:"" help:"Write an image."`
	Program  ProgramCmd  `cmd:"" help:"Write an image unless the flash already holds it."`
	Verify   VerifyCmd   `cmd:"" help:"Compare the flash with an image."`
	Read     ReadCmd     `cmd:"" help:"Read flash into a file."`
}

func createLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

type session struct {
	logger *log.Logger
	flash  *flash.Controller
	tasks  *tasks.Tasks
	close  func() error
}

func (s *session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func (g *Globals) profile() (*variant.Profile, error) {
	p, ok := variant.Lookup(g.Variant)
	if !ok {
		return nil, fmt.Errorf("unknown variant '%s'", g.Variant)
	}
	return p, nil
}

func (g *Globals) openBus(p *variant.Profile) (regs.Bus, func() error, error) {
	switch g.Backend {
	case "devmem":
		dev, err := devmem.Open(g.Devmem, p)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil

	case "uio":
		dev, err := devmem.OpenUIO(p)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	}

	var opts []sim.Option
	if g.DualBank == "dual" {
		opts = append(opts, sim.WithDualBank(variant.Dual))
	}
	hw := sim.New(p, opts...)

	if g.SimFile == "" {
		return hw, nil, nil
	}

	f, err := os.Open(g.SimFile)
	switch {
	case err == nil:
		err = hw.Load(f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, nil, err
	}

	save := func() error {
		f, err := os.Create(g.SimFile)
		if err != nil {
			return err
		}
		if err := hw.Save(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return hw, save, nil
}

func (g *Globals) open() (*session, error) {
	logger := createLogger(g.Debug, g.Quiet)

	p, err := g.profile()
	if err != nil {
		return nil, err
	}

	bus, closer, err := g.openBus(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", g.Backend, err)
	}

	opts := []flash.Option{flash.WithLogger(logger)}
	if g.Timeout > 0 {
		opts = append(opts, flash.WithWaiter(flash.Deadline{Timeout: g.Timeout}))
	}

	c := flash.New(bus, p, opts...)
	switch g.DualBank {
	case "auto":
		c.SyncDualBank()
	case "dual":
		c.SetDualBank(variant.Dual)
	case "single":
		c.SetDualBank(variant.Single)
	}

	logger.Debug("Opened controller",
		log.String("variant", p.Name),
		log.String("backend", g.Backend),
		log.Stringer("mode", c.DualBank()))

	return &session{
		logger: logger,
		flash:  c,
		tasks:  tasks.New(c, logger),
		close:  closer,
	}, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("mcuflash"),
		kong.Description("Microcontroller embedded flash programmer."),
		kong.UsageOnError(),
		kong.Vars{"version": buildinfo.Version(version, commit, date)},
	)

	err := ctx.Run(&cli.Globals)
	if err != nil {
		logger := createLogger(cli.Debug, cli.Quiet)
		logger.Error("Command failed", log.Err(err))
		os.Exit(1)
	}
}
