package vdma

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Status represents a VDMA core operation status code
type Status int

const (
	StatusSuccess                 Status = 0
	StatusInvalidArgument         Status = 1
	StatusNotEnoughDescriptors    Status = 2
	StatusTooManyOngoingTransfers Status = 3
	StatusInvalidAddress          Status = 4
	StatusChannelNotActive        Status = 5
	StatusValidationFailure       Status = 6
)

var statusMessages = map[Status]string{
	StatusSuccess:                 "success",
	StatusInvalidArgument:         "invalid argument",
	StatusNotEnoughDescriptors:    "not enough descriptors",
	StatusTooManyOngoingTransfers: "too many ongoing transfers",
	StatusInvalidAddress:          "invalid vdma address",
	StatusChannelNotActive:        "channel not active",
	StatusValidationFailure:       "descriptor status validation failure",
}

// String returns the human-readable status message
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status (%d)", int(s))
}

// VdmaError represents an error from the VDMA core
type VdmaError struct {
	Status  Status
	Context string
	Cause   error
}

// Error implements the error interface
func (e *VdmaError) Error() string {
	if e.Context != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Context, e.Status.String(), e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Context, e.Status.String())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Status.String(), e.Cause)
	}
	return e.Status.String()
}

// Unwrap returns the underlying cause
func (e *VdmaError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target status
func (e *VdmaError) Is(target error) bool {
	var vdmaErr *VdmaError
	if errors.As(target, &vdmaErr) {
		return e.Status == vdmaErr.Status
	}
	return false
}

// NewError creates a new VdmaError with the given status
func NewError(status Status, context string) *VdmaError {
	return &VdmaError{
		Status:  status,
		Context: context,
	}
}

// Sentinel errors for the core's error taxonomy. Capacity and addressing
// errors are detected before any hardware-visible write; validation errors
// are post-completion diagnostics.
var (
	ErrInvalidArgument         = NewError(StatusInvalidArgument, "")
	ErrNotEnoughDescriptors    = NewError(StatusNotEnoughDescriptors, "")
	ErrTooManyOngoingTransfers = NewError(StatusTooManyOngoingTransfers, "")
	ErrInvalidAddress          = NewError(StatusInvalidAddress, "")
	ErrChannelNotActive        = NewError(StatusChannelNotActive, "")
	ErrValidationFailure       = NewError(StatusValidationFailure, "")
)

// StatusToErrno converts a core status to the errno the ioctl layer should
// surface for it
func StatusToErrno(status Status) unix.Errno {
	switch status {
	case StatusSuccess:
		return 0
	case StatusInvalidArgument:
		return unix.EINVAL
	case StatusNotEnoughDescriptors:
		return unix.ENOSPC
	case StatusTooManyOngoingTransfers:
		return unix.ENOBUFS
	case StatusInvalidAddress:
		return unix.EFAULT
	case StatusChannelNotActive:
		return unix.ENOTCONN
	case StatusValidationFailure:
		return unix.EIO
	default:
		return unix.EFAULT
	}
}

// ErrnoFromError extracts the errno for any error produced by this package
func ErrnoFromError(err error) unix.Errno {
	var vdmaErr *VdmaError
	if errors.As(err, &vdmaErr) {
		return StatusToErrno(vdmaErr.Status)
	}
	return unix.EFAULT
}
