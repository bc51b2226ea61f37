//Package ocl owns the OpenCL objects a DAISY computation needs on one device:
// platform, device, context, programs, the in-order and out-of-order command queues
// and the memory buffers.
//
// A Constructs is built once and then reused for every frame processed on its device,
// programs and buffers are cached on it so repeated frames do not recompile or reallocate.
package ocl

import (
	"golang.org/x/xerrors"
)

var (
	// ErrNoDevice is returned when no platform exposes a usable device of the requested type
	ErrNoDevice = xerrors.New("ocl: no suitable opencl device found")
	// ErrDeviceNotFound is returned when an explicitly requested device index is missing or excluded
	ErrDeviceNotFound = xerrors.New("ocl: requested device not found")
	// ErrNotBuilt is returned when programs or buffers are requested before BuildCachedConstructs succeeded
	ErrNotBuilt = xerrors.New("ocl: constructs not built")
	// ErrSlotOutOfRange is returned for a program or buffer slot the constructs was not sized for
	ErrSlotOutOfRange = xerrors.New("ocl: slot out of range")
	// ErrInvalidSize is returned for empty buffer requests
	ErrInvalidSize = xerrors.New("ocl: invalid buffer size")
	// ErrUnsupported is returned for context properties the binding cannot honour
	ErrUnsupported = xerrors.New("ocl: unsupported")
)

func wrapErr(msg string, err error) error {
	return xerrors.Errorf("%s: %w", msg, err)
}
