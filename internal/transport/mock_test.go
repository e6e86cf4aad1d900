package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestablePort_ReadChunks(t *testing.T) {
	port := NewTestablePort()
	port.QueueRead([]byte("0.5\n"))
	port.QueueRead([]byte("0.6\n"))
	assert.Equal(t, 2, port.Pending())

	buf := make([]byte, 9)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0.5\n", string(buf[:n]))

	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0.6\n", string(buf[:n]))

	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, port.ReadCalls)
}

func TestTestablePort_SplitsLongChunk(t *testing.T) {
	port := NewTestablePort()
	port.QueueRead([]byte("0123456789AB"))

	buf := make([]byte, 9)
	n, _ := port.Read(buf)
	assert.Equal(t, "012345678", string(buf[:n]))
	n, _ = port.Read(buf)
	assert.Equal(t, "9AB", string(buf[:n]))
	assert.Zero(t, port.Pending())
}

func TestTestablePort_ErrorsAreOneShot(t *testing.T) {
	port := NewTestablePort()
	port.SetReadError(errors.New("boom"))

	_, err := port.Read(make([]byte, 1))
	assert.EqualError(t, err, "boom")
	_, err = port.Read(make([]byte, 1))
	assert.NoError(t, err)

	port.SetWriteError(errors.New("nope"))
	_, err = port.Write([]byte("x"))
	assert.Error(t, err)
	_, err = port.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, 2, port.WriteCalls)
}

func TestTestablePort_OnWrite(t *testing.T) {
	port := NewTestablePort()
	port.OnWrite = func(p []byte) { port.QueueRead([]byte("4.2\n")) }

	require.NoError(t, SendCommand(port, "READ?"))
	assert.Equal(t, 1, port.Pending())
}

func TestTestablePort_Close(t *testing.T) {
	port := NewTestablePort()
	port.CloseError = errors.New("close failed")

	assert.EqualError(t, port.Close(), "close failed")
	assert.True(t, port.Closed)

	_, err := port.Read(make([]byte, 1))
	assert.Error(t, err)
	_, err = port.Write([]byte("x"))
	assert.Error(t, err)
}

func TestTestablePort_SetReadTimeout(t *testing.T) {
	var port TimeoutPort = NewTestablePort()
	require.NoError(t, port.SetReadTimeout(25*time.Millisecond))
	assert.Equal(t, 25*time.Millisecond, port.(*TestablePort).ReadTimeout)
}
