package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fprint/internal/timer"
	"fprint/internal/transport"
)

func TestTimersFireAfterCompletions(t *testing.T) {
	ft := transport.NewFake()
	l := New(ft)
	base := time.Unix(0, 0)
	l.SetClock(func() time.Time { return base })

	var order []string
	ft.SubmitTransfer(transport.Bulk, transport.EndpointBulkIn, make([]byte, 4), 0, func(transport.TransferStatus, []byte, int, error) {
		order = append(order, "usb")
	})
	ft.Complete(transport.StatusCompleted, []byte{1, 2, 3, 4}, nil)

	l.Timers.Add(0, func(*timer.Timer, interface{}) { order = append(order, "timer") }, nil)

	n, err := l.HandleEventsTimeout(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"usb", "timer"}, order)
}
