// Package transport models the abstract asynchronous bulk/interrupt
// transfer service of spec.md §1 and §6: bulk IN 0x81, bulk OUT 0x02, and
// interrupt IN 0x83 endpoints with a 4000ms default transfer timeout,
// overridable per transfer, exposed through a pollfd/timer interface so a
// caller's own event loop (internal/eventloop) can multiplex USB completion
// with timers.
//
// The USB transport itself is explicitly out of scope per spec.md §1 ("USB
// transport ... is modeled as an abstract ... service"); this package is
// the boundary the core programs against, plus one concrete realization
// (USBTransport, backed by github.com/google/gousb) that a real image
// sensor driver would use, grounded on
// guiperry-HASHER/internal/driver/device/usb_device.go's
// Context/Device/Config/Interface/Endpoint lifecycle.
package transport

import (
	"time"
)

// EndpointBulkIn/EndpointBulkOut/EndpointIntrIn are the canonical endpoint addresses
// spec.md §6 assumes absent per-transfer overrides.
const (
	EndpointBulkIn  = 0x81
	EndpointBulkOut = 0x02
	EndpointIntrIn  = 0x83

	DefaultTimeout = 4000 * time.Millisecond
)

// TransferKind distinguishes bulk from interrupt transfers.
type TransferKind int

const (
	Bulk TransferKind = iota
	Interrupt
)

// TransferStatus is reported on completion.
type TransferStatus int

const (
	StatusCompleted TransferStatus = iota
	StatusTimeout
	StatusCancelled
	StatusError
	StatusShortTransfer
)

// CompletionFunc is invoked when a submitted transfer completes. data is
// the buffer the transfer read into (for IN transfers) or wrote from (for
// OUT transfers); n is the number of bytes actually transferred.
type CompletionFunc func(status TransferStatus, data []byte, n int, err error)

// PollFD is a file descriptor plus the event mask the transport needs
// watched, mirroring spec.md §4.3 get_pollfds.
type PollFD struct {
	FD     uintptr
	Events uint16 // POLLIN/POLLOUT-style bitmask, transport-defined
}

// PollFDNotifier is invoked when the transport's watched-fd set changes.
type PollFDNotifier func(fd PollFD)

// Transport is the abstract asynchronous bulk/interrupt transfer service a
// device session (internal/device) and an image-device driver
// (internal/imgdev) program against. A concrete transport (USBTransport, or
// Fake for tests) satisfies it.
type Transport interface {
	// SubmitTransfer issues one asynchronous transfer on endpoint and
	// invokes cb on completion. For OUT transfers buf is the data to send;
	// for IN transfers buf is the buffer to fill. timeout of 0 means
	// DefaultTimeout.
	SubmitTransfer(kind TransferKind, endpoint uint8, buf []byte, timeout time.Duration, cb CompletionFunc) (cancel func(), err error)

	// HandleEvents services any completions that are ready, up to timeout.
	// Returns the number of completions dispatched, or a negative errno on
	// transport failure (spec.md §4.3).
	HandleEvents(timeout time.Duration) (int, error)

	// PollFDs returns the current set of file descriptors the transport
	// needs watched.
	PollFDs() []PollFD

	// SetPollFDNotifiers registers callbacks invoked when the transport's
	// watched-fd set changes.
	SetPollFDNotifiers(add, remove PollFDNotifier)

	// Close releases all transport resources.
	Close() error
}
