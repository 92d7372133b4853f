package serial

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRW feeds each chunk as one Read and records writes. An empty
// chunk models a zero-byte read; exhaustion models a read timeout the
// way tarm/serial reports it.
type mockRW struct {
	reads [][]byte
	i     int
	wrote bytes.Buffer
}

func (m *mockRW) Read(p []byte) (int, error) {
	if m.i >= len(m.reads) {
		return 0, io.EOF
	}
	data := m.reads[m.i]
	m.i++
	return copy(p, data), nil
}

func (m *mockRW) Write(p []byte) (int, error) {
	return m.wrote.Write(p)
}

func TestBufferFillEmpty(t *testing.T) {
	b := newBuffer(16)
	m := &mockRW{reads: [][]byte{{}}}
	n, err := b.fill(m)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, b.hasLeft())
}

func TestBufferFillOnce(t *testing.T) {
	b := newBuffer(8)
	m := &mockRW{reads: [][]byte{[]byte("abcd"), []byte("efgh")}}
	n, err := b.fill(m)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, b.hasLeft())
	assert.Equal(t, []byte("abcd"), b.data[:4])
}

func TestBufferFillFailsWhenDataLeft(t *testing.T) {
	b := newBuffer(8)
	m := &mockRW{reads: [][]byte{[]byte("abcd"), []byte("efgh")}}
	_, err := b.fill(m)
	require.NoError(t, err)
	_, err = b.fill(m)
	assert.ErrorIs(t, err, errDataLeft)
}

func TestBufferReadToLF(t *testing.T) {
	b := newBuffer(16)
	assert.Nil(t, b.readToLF())

	m := &mockRW{reads: [][]byte{[]byte("abc\r\ndefg\r\nijkl")}}
	_, err := b.fill(m)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc\r\n"), b.readToLF())
	assert.Equal(t, []byte("defg\r\n"), b.readToLF())
	assert.Nil(t, b.readToLF(), "no LF in the remainder")
}

func TestBufferReadToLFWithoutLF(t *testing.T) {
	b := newBuffer(8)
	m := &mockRW{reads: [][]byte{[]byte("abcdefgh")}}
	_, err := b.fill(m)
	require.NoError(t, err)
	assert.Nil(t, b.readToLF())
}

func TestBufferReadToLFConsecutiveCRLF(t *testing.T) {
	b := newBuffer(16)
	m := &mockRW{reads: [][]byte{[]byte("abc\r\n\r\n")}}
	_, err := b.fill(m)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc\r\n"), b.readToLF())
	assert.Equal(t, []byte("\r\n"), b.readToLF())
	assert.Nil(t, b.readToLF())
}

func TestBufferRemain(t *testing.T) {
	b := newBuffer(16)
	assert.Nil(t, b.remain())

	m := &mockRW{reads: [][]byte{[]byte("abc\r\ndef")}}
	_, err := b.fill(m)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc\r\n"), b.readToLF())
	assert.Equal(t, []byte("def"), b.remain())
	assert.Nil(t, b.remain())
}

func TestBufferFillAfterDrain(t *testing.T) {
	b := newBuffer(16)
	m := &mockRW{reads: [][]byte{[]byte("abc\r\ndef\r\n")}}
	_, err := b.fill(m)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc\r\n"), b.readToLF())
	assert.Equal(t, []byte("def\r\n"), b.readToLF())
	assert.Nil(t, b.readToLF())

	m2 := &mockRW{reads: [][]byte{[]byte("123\r\n")}}
	_, err = b.fill(m2)
	require.NoError(t, err)
	assert.Equal(t, []byte("123\r\n"), b.readToLF())
}
