package channel_test

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/absmach/fedanomaly/pkg/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecv(t *testing.T) {
	cases := []struct {
		desc    string
		payload []byte
	}{
		{desc: "empty payload", payload: []byte{}},
		{desc: "small payload", payload: []byte("sequence-snapshot")},
		{desc: "large payload", payload: bytes.Repeat([]byte{0xAB}, 1<<20)},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, channel.Send(&buf, tc.payload))
			assert.Equal(t, 4+len(tc.payload), buf.Len())
			assert.Equal(t, uint32(len(tc.payload)), binary.BigEndian.Uint32(buf.Bytes()[:4]))

			got, err := channel.Recv(&buf)
			require.NoError(t, err)
			assert.Equal(t, len(tc.payload), len(got))
			assert.True(t, bytes.Equal(tc.payload, got))
		})
	}
}

func TestRecvOrderIsPreserved(t *testing.T) {
	a := bytes.Repeat([]byte{1}, 17)
	b := bytes.Repeat([]byte{2}, 4099)

	left, right := net.Pipe()
	sender := channel.New(left)
	receiver := channel.New(right)
	defer sender.Close()
	defer receiver.Close()

	errs := make(chan error, 1)
	go func() {
		if err := sender.Send(a); err != nil {
			errs <- err
			return
		}
		errs <- sender.Send(b)
	}()

	first, err := receiver.Recv()
	require.NoError(t, err)
	second, err := receiver.Recv()
	require.NoError(t, err)
	require.NoError(t, <-errs)

	assert.Len(t, first, len(a))
	assert.Len(t, second, len(b))
	assert.Equal(t, a, first)
	assert.Equal(t, b, second)
	assert.Equal(t, uint64(8+len(a)+len(b)), sender.BytesSent())
	assert.Equal(t, uint64(8+len(a)+len(b)), receiver.BytesReceived())
}

func TestRecvTruncated(t *testing.T) {
	cases := []struct {
		desc  string
		bytes []byte
	}{
		{
			desc:  "stream ends before header",
			bytes: []byte{0, 0},
		},
		{
			desc:  "stream ends inside payload",
			bytes: append([]byte{0, 0, 0, 10}, []byte("short")...),
		},
		{
			desc:  "empty stream",
			bytes: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := channel.Recv(bytes.NewReader(tc.bytes))
			assert.ErrorIs(t, err, channel.ErrConnectionClosed)
		})
	}
}

func TestRecvTruncatedOverPipe(t *testing.T) {
	left, right := net.Pipe()
	receiver := channel.New(right)
	defer receiver.Close()

	go func() {
		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, 64)
		_, _ = left.Write(header)
		_, _ = left.Write([]byte("only a part"))
		left.Close()
	}()

	_, err := receiver.Recv()
	assert.ErrorIs(t, err, channel.ErrConnectionClosed)
}

func TestRecvMalformed(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 1024)

	c := channel.New(nopCloser{bytes.NewBuffer(header)}, channel.WithMaxSize(512))
	_, err := c.Recv()
	assert.ErrorIs(t, err, channel.ErrMalformed)
}

func TestSendTooLarge(t *testing.T) {
	c := channel.New(nopCloser{&bytes.Buffer{}}, channel.WithMaxSize(8))
	err := c.Send(make([]byte, 9))
	assert.ErrorIs(t, err, channel.ErrMalformed)
}

func TestSendOnClosedConnection(t *testing.T) {
	left, right := net.Pipe()
	right.Close()

	err := channel.New(left).Send([]byte("weights"))
	assert.ErrorIs(t, err, channel.ErrConnectionClosed)
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }
