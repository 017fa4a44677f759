// Package tasks implements whole image operations on top of the flash
// driver: programming with read back verification, dumping and erasing.
package tasks

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/BertoldVdb/mcuflash/flash"
	"github.com/BertoldVdb/mcuflash/image"
	"github.com/retroenv/retrogolib/log"
)

var ErrorVerify = errors.New("verify failed")

type Tasks struct {
	flash  *flash.Controller
	logger *log.Logger

	// Progress is called after every page or sector written.
	Progress func(done int, total int)
}

func New(c *flash.Controller, logger *log.Logger) *Tasks {
	return &Tasks{
		flash:  c,
		logger: logger,
	}
}

func (t *Tasks) progress(done int, total int) {
	if t.Progress != nil {
		t.Progress(done, total)
	}
}

// WriteImage erases every page or sector the image touches and programs it.
// Data sharing those units but outside the image is lost.
func (t *Tasks) WriteImage(img *image.Image, verify bool) error {
	p := t.flash.Profile()

	pages, err := img.Pages(p, t.flash.DualBank())
	if err != nil {
		return err
	}

	t.logger.Info("Writing image",
		log.Hex("base", img.Base),
		log.Int("length", len(img.Data)),
		log.Int("units", len(pages)))

	for i, pg := range pages {
		if err := t.flash.EraseUnit(pg.Index, pg.Bank); err != nil {
			return fmt.Errorf("erase %s %s/%d: %w", p.UnitName(), pg.Bank, pg.Index, err)
		}
		if err := t.flash.WritePageAt(pg.Index, pg.Bank, pg.Offset, pg.Data); err != nil {
			return fmt.Errorf("write %s %s/%d: %w", p.UnitName(), pg.Bank, pg.Index, err)
		}
		t.progress(i+1, len(pages))
	}

	if verify {
		rb, err := t.ReadImage(img.Base, len(img.Data))
		if err != nil {
			return err
		}

		if !bytes.Equal(rb.Data, img.Data) {
			return ErrorVerify
		}
	}

	return nil
}

// ReadImage reads size bytes of flash starting at the address base.
func (t *Tasks) ReadImage(base uint32, size int) (*image.Image, error) {
	p := t.flash.Profile()
	if base < p.FlashBase {
		return nil, image.ErrorOutsideFlash
	}

	img := &image.Image{
		Base: base,
		Data: make([]byte, size),
	}

	if _, err := t.flash.ReadAt(img.Data, int64(base-p.FlashBase)); err != nil {
		return nil, fmt.Errorf("read %08x: %w", base, err)
	}

	return img, nil
}

// Dump reads the complete flash.
func (t *Tasks) Dump() (*image.Image, error) {
	p := t.flash.Profile()
	return t.ReadImage(p.FlashBase, int(p.Size()))
}

// Program writes the image unless the flash already holds it. It reports
// whether anything was written.
func (t *Tasks) Program(img *image.Image) (bool, error) {
	current, err := t.ReadImage(img.Base, len(img.Data))
	if err != nil && !errors.Is(err, flash.ErrorECC) {
		return false, err
	}

	if err == nil && bytes.Equal(current.Data, img.Data) {
		t.logger.Info("Flash is up to date")
		return false, nil
	}

	return true, t.WriteImage(img, true)
}

// EraseAll erases the complete flash and checks that it reads back erased.
func (t *Tasks) EraseAll() error {
	if err := t.flash.EraseAll(); err != nil {
		return err
	}

	img, err := t.Dump()
	if err != nil {
		return err
	}

	erased := t.flash.Profile().Erased
	for i, m := range img.Data {
		if m != erased {
			return fmt.Errorf("%w: %08x not erased", ErrorVerify, img.Base+uint32(i))
		}
	}
	return nil
}
