package transport

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Endpoint names one characteristic on a probe.
type Endpoint struct {
	Name           string
	Service        uuid.UUID
	Characteristic uuid.UUID
}

func (e Endpoint) String() string {
	return e.Name
}

var (
	statusService = uuid.MustParse("00000100-caab-3792-3d44-97ae51c1407a")
	uartService   = uuid.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e")

	// ProbeStatus carries session status notifications.
	ProbeStatus = Endpoint{
		Name:           "probe-status",
		Service:        statusService,
		Characteristic: uuid.MustParse("00000101-caab-3792-3d44-97ae51c1407a"),
	}
	// UARTRx accepts request envelopes.
	UARTRx = Endpoint{
		Name:           "uart-rx",
		Service:        uartService,
		Characteristic: uuid.MustParse("6e400002-b5a3-f393-e0a9-e50e24dcca9e"),
	}
	// UARTTx notifies response envelopes.
	UARTTx = Endpoint{
		Name:           "uart-tx",
		Service:        uartService,
		Characteristic: uuid.MustParse("6e400003-b5a3-f393-e0a9-e50e24dcca9e"),
	}
)

// Endpoints lists every endpoint a session uses.
func Endpoints() []Endpoint {
	return []Endpoint{ProbeStatus, UARTRx, UARTTx}
}

// Advertisement is one broadcast observation. Data is the manufacturer
// payload with the company identifier removed.
type Advertisement struct {
	Identity string
	Data     []byte
	RSSI     int16
	SeenAt   time.Time
}

// Scanner reports advertisements until ctx is cancelled. The callback runs
// on the scanner's goroutine and must not block.
type Scanner interface {
	Scan(ctx context.Context, fn func(Advertisement)) error
}

// Dialer opens a connection to the device with the given identity.
type Dialer interface {
	Dial(ctx context.Context, identity string) (Conn, error)
}

// Conn is an open connection to one probe.
type Conn interface {
	// Write sends data to ep and returns once the transport accepted it.
	Write(ctx context.Context, ep Endpoint, data []byte) error
	// Subscribe streams notifications from ep. The channel closes when ctx
	// is cancelled or the connection closes.
	Subscribe(ctx context.Context, ep Endpoint) (<-chan []byte, error)
	Close() error
}

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// ErrUnknownEndpoint is returned when a connection does not expose an
// endpoint.
var ErrUnknownEndpoint = errors.New("transport: unknown endpoint")
