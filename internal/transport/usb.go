package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"fprint/internal/corerr"
)

// USBTransport is the gousb-backed realization of Transport, grounded on
// guiperry-HASHER/internal/driver/device/usb_device.go's OpenUSBDevice:
// open a context, match vendor/product, claim configuration 1 and
// interface 0/0, then open the canonical bulk/interrupt endpoints. Unlike
// the teacher's synchronous ReadContext/Write calls, transfers here are
// submitted from a goroutine and their completions are queued for the
// single-threaded HandleEvents dispatcher, preserving spec.md §5's
// "callbacks run from inside handle_events_timeout" rule.
type USBTransport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	epIn   *gousb.InEndpoint
	epOut  *gousb.OutEndpoint
	epIntr *gousb.InEndpoint

	mu       sync.Mutex
	pending  []fakeCompletion // reuse the same queued-completion shape
	addCb    PollFDNotifier
	removeCb PollFDNotifier
}

// OpenUSBTransport claims the device at (vid, pid) and opens the standard
// bulk IN/OUT and interrupt IN endpoints of spec.md §6.
func OpenUSBTransport(vid, pid gousb.ID) (*USBTransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open usb device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, corerr.ENOENT
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim config: %w", err)
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}

	epIn, err := intf.InEndpoint(EndpointBulkIn & 0x0f)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("open bulk in endpoint: %w", err)
	}

	epOut, err := intf.OutEndpoint(EndpointBulkOut)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("open bulk out endpoint: %w", err)
	}

	// The interrupt endpoint is optional; not every sensor uses one.
	epIntr, _ := intf.InEndpoint(EndpointIntrIn & 0x0f)

	return &USBTransport{
		ctx:    ctx,
		dev:    dev,
		cfg:    cfg,
		intf:   intf,
		epIn:   epIn,
		epOut:  epOut,
		epIntr: epIntr,
	}, nil
}

func (t *USBTransport) SubmitTransfer(kind TransferKind, endpoint uint8, buf []byte, timeout time.Duration, cb CompletionFunc) (func(), error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	go func() {
		var n int
		var err error
		switch {
		case endpoint == EndpointBulkOut:
			n, err = t.epOut.WriteContext(ctx, buf)
		case endpoint == EndpointIntrIn && t.epIntr != nil:
			n, err = t.epIntr.ReadContext(ctx, buf)
		default:
			n, err = t.epIn.ReadContext(ctx, buf)
		}

		status := StatusCompleted
		switch {
		case err == context.DeadlineExceeded:
			status = StatusTimeout
		case err == context.Canceled:
			status = StatusCancelled
		case err != nil:
			status = StatusError
		case kind == Bulk && n < len(buf) && endpoint != EndpointBulkOut:
			status = StatusShortTransfer
		}

		t.mu.Lock()
		t.pending = append(t.pending, fakeCompletion{status: status, data: buf, n: n, err: err, cb: cb})
		t.mu.Unlock()
	}()

	return cancel, nil
}

func (t *USBTransport) HandleEvents(_ time.Duration) (int, error) {
	t.mu.Lock()
	due := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, c := range due {
		c.cb(c.status, c.data, c.n, c.err)
	}
	return len(due), nil
}

func (t *USBTransport) PollFDs() []PollFD { return nil }

func (t *USBTransport) SetPollFDNotifiers(add, remove PollFDNotifier) {
	t.addCb = add
	t.removeCb = remove
}

func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	if t.dev != nil {
		t.dev.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return nil
}

var _ Transport = (*USBTransport)(nil)
