// Package serial provides line-oriented access to the UART the Wi-SUN
// module is attached to. The module talks an ASCII SK command protocol
// upward; UDP payloads go downward as raw binary.
package serial

import (
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	tarm "github.com/tarm/serial"
)

const (
	// DefaultBaud is the factory baud rate of BP35A1-style modules.
	DefaultBaud = 115200

	// 1行は最大1024バイト（ERXUDPのhexダンプが最長）
	bufferSize = 1024

	readTimeout = 100 * time.Millisecond
)

// ErrTimeout is returned by ReadLine when no complete line arrived
// within the port's read timeout. Callers are expected to retry.
var ErrTimeout = errors.New("serial: read timed out")

// Conn is a line-oriented serial connection.
type Conn interface {
	// WriteLine writes line followed by CRLF.
	WriteLine(line string) error
	// WriteBytes writes data verbatim. Used for SKSENDTO, whose
	// payload is binary and must not be line-terminated per byte.
	WriteBytes(data []byte) error
	// ReadLine returns the next line with trailing CR/LF removed.
	ReadLine() (string, error)
	Close() error
}

type conn struct {
	rw      io.ReadWriter
	buf     *buffer
	pending []byte
}

// Open opens the serial device at the given baud rate (DefaultBaud when
// zero) in 8-N-1 mode with a short read timeout.
func Open(device string, baud int) (Conn, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        device,
		Baud:        baud,
		Size:        8,
		StopBits:    tarm.Stop1,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", device)
	}
	return NewConn(port), nil
}

// NewConn wraps an already-open read-writer. Tests use this with an
// in-memory stream.
func NewConn(rw io.ReadWriter) Conn {
	return &conn{
		rw:  rw,
		buf: newBuffer(bufferSize),
	}
}

func (c *conn) WriteLine(line string) error {
	if err := c.WriteBytes(append([]byte(line), '\r', '\n')); err != nil {
		return err
	}
	logrus.Tracef("serial input: %s", line)
	return nil
}

func (c *conn) WriteBytes(data []byte) error {
	if _, err := c.rw.Write(data); err != nil {
		return errors.Wrap(err, "serial write")
	}
	return nil
}

func (c *conn) ReadLine() (string, error) {
	for {
		if !c.buf.hasLeft() {
			n, err := c.buf.fill(c.rw)
			if err != nil {
				// tarm/serial surfaces an expired read timeout as
				// io.EOF (a zero-byte read through os.File).
				if err == io.EOF || os.IsTimeout(err) {
					return "", ErrTimeout
				}
				return "", errors.Wrap(err, "serial read")
			}
			if n == 0 {
				// no data yet
				continue
			}
		}
		if line := c.buf.readToLF(); line != nil {
			raw := append(c.pending, line...)
			c.pending = nil
			text := trimLineEnd(raw)
			if !utf8.Valid(text) {
				return "", errors.Errorf("serial: line is not valid UTF-8: %q", text)
			}
			logrus.Tracef("serial output: %s", text)
			return string(text), nil
		}
		if rest := c.buf.remain(); rest != nil {
			c.pending = append(c.pending, rest...)
		}
	}
}

func (c *conn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// trimLineEnd strips all trailing CR/LF bytes.
func trimLineEnd(text []byte) []byte {
	end := 0
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] != '\r' && text[i] != '\n' {
			end = i + 1
			break
		}
	}
	return text[:end]
}
