package flash

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrorBusy           = errors.New("flash controller busy")
	ErrorIllegal        = errors.New("illegal flash operation")
	ErrorECC            = errors.New("flash ECC error")
	ErrorPageOutOfRange = errors.New("page out of range")
	ErrorFailure        = errors.New("flash unlock failed")
	ErrorTimeout        = errors.New("timeout")
)

// StatusError reports error flags raised by the hardware during an
// operation. It matches ErrorIllegal.
type StatusError struct {
	Status uint32
	Flags  []string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %08x [%s]", ErrorIllegal, e.Status, strings.Join(e.Flags, " "))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrorIllegal
}
