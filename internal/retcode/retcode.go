// SPDX-License-Identifier: MIT
//
// Package retcode maps the negative integer status codes returned by the
// acquisition and storage drivers onto Go errors. The values follow the kernel
// return codes the sampling and flash drivers report on the target board.
package retcode

import (
	"errors"
	"fmt"
)

// Code is a driver status code. Zero is success, every failure is negative.
type Code int

const (
	Success   Code = 0
	Fail      Code = -1
	Busy      Code = -2
	Already   Code = -3
	Off       Code = -4
	Reserve   Code = -5
	Invalid   Code = -6
	Size      Code = -7
	Cancel    Code = -8
	NoMem     Code = -9
	NoSupport Code = -10
	NoDevice  Code = -11
	Uninstall Code = -12
	NoAck     Code = -13
)

// Sentinel errors, one per failure code. Driver implementations return these
// (optionally wrapped) so callers can use errors.Is.
var (
	ErrFail      error = Fail
	ErrBusy      error = Busy
	ErrAlready   error = Already
	ErrOff       error = Off
	ErrReserve   error = Reserve
	ErrInvalid   error = Invalid
	ErrSize      error = Size
	ErrCancel    error = Cancel
	ErrNoMem     error = NoMem
	ErrNoSupport error = NoSupport
	ErrNoDevice  error = NoDevice
)

// Error implements the error interface.
func (c Code) Error() string {
	return fmt.Sprintf("%s (%d)", c.String(), int(c))
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case Fail:
		return "FAIL"
	case Busy:
		return "EBUSY"
	case Already:
		return "EALREADY"
	case Off:
		return "EOFF"
	case Reserve:
		return "ERESERVE"
	case Invalid:
		return "EINVAL"
	case Size:
		return "ESIZE"
	case Cancel:
		return "ECANCEL"
	case NoMem:
		return "ENOMEM"
	case NoSupport:
		return "ENOSUPPORT"
	case NoDevice:
		return "ENODEVICE"
	case Uninstall:
		return "EUNINSTALLED"
	case NoAck:
		return "ENOACK"
	default:
		return "EUNKNOWN"
	}
}

// FromInt converts a raw driver status into an error. Non-negative values are
// success and yield nil. Unknown negative values map to ErrFail.
func FromInt(v int) error {
	if v >= 0 {
		return nil
	}
	c := Code(v)
	if c.String() == "EUNKNOWN" {
		return fmt.Errorf("%w: unknown code %d", ErrFail, v)
	}
	return c
}

// Of extracts the status code carried by err. It returns Success for nil and
// Fail for errors that carry no code.
func Of(err error) Code {
	if err == nil {
		return Success
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Fail
}
