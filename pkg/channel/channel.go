// Package channel implements length-prefixed message framing over a
// persistent, ordered byte stream.
//
// Every frame is a 4 byte big-endian length followed by exactly that many
// payload bytes. There is no type tag and no checksum: the order in which
// frames are sent is the only thing that gives them meaning.
package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	headerSize = 4

	// DefaultMaxSize bounds a single frame. Model snapshots are a few MiB at
	// most, anything close to this is a corrupted header.
	DefaultMaxSize = 512 << 20
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrMalformed        = errors.New("malformed frame")
)

// Send writes payload as one frame.
func Send(w io.Writer, payload []byte) error {
	return send(w, payload, DefaultMaxSize)
}

// Recv blocks until a complete frame has been read from r.
func Recv(r io.Reader) ([]byte, error) {
	return recv(r, DefaultMaxSize)
}

func send(w io.Writer, payload []byte, maxSize uint32) error {
	if uint64(len(payload)) > uint64(maxSize) {
		return fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", ErrMalformed, len(payload), maxSize)
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)

	if _, err := w.Write(frame); err != nil {
		if isClosed(err) {
			return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}

		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

func recv(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readErr(err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds limit of %d", ErrMalformed, size, maxSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, readErr(err)
	}

	return payload, nil
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isClosed(err) {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}

	return fmt.Errorf("failed to read frame: %w", err)
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// Conn is a framed view of a single stream connection. It is not safe for
// concurrent use; exactly one goroutine drives it at a time.
type Conn struct {
	rw      io.ReadWriteCloser
	maxSize uint32

	sent     atomic.Uint64
	received atomic.Uint64
}

type Option func(*Conn)

// WithMaxSize overrides DefaultMaxSize for both directions.
func WithMaxSize(n uint32) Option {
	return func(c *Conn) {
		c.maxSize = n
	}
}

func New(rw io.ReadWriteCloser, opts ...Option) *Conn {
	c := &Conn{
		rw:      rw,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dial connects to address over TCP. The timeout only bounds connection
// establishment; reads and writes on the returned Conn have no deadline.
func Dial(ctx context.Context, address string, timeout time.Duration, opts ...Option) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return New(nc, opts...), nil
}

func (c *Conn) Send(payload []byte) error {
	if err := send(c.rw, payload, c.maxSize); err != nil {
		return err
	}
	c.sent.Add(uint64(headerSize + len(payload)))

	return nil
}

func (c *Conn) Recv() ([]byte, error) {
	payload, err := recv(c.rw, c.maxSize)
	if err != nil {
		return nil, err
	}
	c.received.Add(uint64(headerSize + len(payload)))

	return payload, nil
}

// BytesSent reports the total number of bytes written, headers included.
func (c *Conn) BytesSent() uint64 {
	return c.sent.Load()
}

// BytesReceived reports the total number of bytes read, headers included.
func (c *Conn) BytesReceived() uint64 {
	return c.received.Load()
}

func (c *Conn) Close() error {
	return c.rw.Close()
}
