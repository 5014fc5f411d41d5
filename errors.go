package canopen

import (
	"errors"
	"fmt"
)

var (
	ErrAddress        = errors.New("unknown dictionary address")
	ErrFormat         = errors.New("invalid value literal")
	ErrTransfer       = errors.New("sdo transfer failed")
	ErrUnknownService = errors.New("unknown nmt service")
	ErrSDOTimeout     = errors.New("sdo timeout exceeded")
	ErrNoNetwork      = errors.New("network not defined")
)

// AddressError reports an index/subindex the dictionary cannot resolve.
type AddressError struct {
	Address DictionaryAddress
	Reason  string
}

func (e *AddressError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrAddress, e.Address)
	}
	return fmt.Sprintf("%s: %s: %s", ErrAddress, e.Address, e.Reason)
}

func (e *AddressError) Is(target error) bool { return target == ErrAddress }

// FormatError reports text that is not a valid literal for a data type.
type FormatError struct {
	Text     string
	DataType DataType
	Err      error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q for %s: %v", ErrFormat, e.Text, e.DataType, e.Err)
	}
	return fmt.Sprintf("%s %q for %s", ErrFormat, e.Text, e.DataType)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// TransferError reports a remote abort or a timeout of an SDO transfer.
// AbortCode is zero when the transfer failed without an abort frame.
type TransferError struct {
	Op        string
	Index     uint16
	SubIndex  uint8
	AbortCode uint32
	Err       error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("sdo %s 0x%04x:%d failed", e.Op, e.Index, e.SubIndex)
	if e.AbortCode != 0 {
		msg += fmt.Sprintf(": abort 0x%08x (%s)", e.AbortCode, AbortCodeDescription(e.AbortCode))
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

func (e *TransferError) Unwrap() error { return e.Err }

// UnknownServiceError reports an NMT service name outside the service table.
type UnknownServiceError struct {
	Name string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownService, e.Name)
}

func (e *UnknownServiceError) Is(target error) bool { return target == ErrUnknownService }
