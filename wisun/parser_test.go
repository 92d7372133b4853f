package wisun

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLineEmpty(t *testing.T) {
	p := NewParser()
	assert.Equal(t, ParseEmpty, p.AddLine("").Status)
}

func TestAddLineOK(t *testing.T) {
	p := NewParser()
	res := p.AddLine("OK")
	require.Equal(t, ParseComplete, res.Status)
	assert.Equal(t, Ok{}, res.Message)
}

func TestAddLineTrimsTrailingCR(t *testing.T) {
	p := NewParser()
	res := p.AddLine("OK\r")
	require.Equal(t, ParseComplete, res.Status)
	assert.Equal(t, Ok{}, res.Message)
}

func TestAddLineFail(t *testing.T) {
	p := NewParser()
	res := p.AddLine("FAIL ER04")
	require.Equal(t, ParseComplete, res.Status)
	assert.Equal(t, Fail{Code: "ER04"}, res.Message)
}

func TestAddLineEvent(t *testing.T) {
	p := NewParser()
	res := p.AddLine("EVENT 25 FE80:0000:0000:0000:1234:5678:90AB:CDEF")
	require.Equal(t, ParseComplete, res.Status)
	ev, ok := res.Message.(ModuleEvent)
	require.True(t, ok)
	assert.Equal(t, EstablishedPanaConnection, ev.Kind)
	assert.Equal(t, net.ParseIP("FE80::1234:5678:90AB:CDEF"), ev.Sender)
}

func TestAddLineEventWithParam(t *testing.T) {
	p := NewParser()
	res := p.AddLine("EVENT 21 FE80:0000:0000:0000:1234:5678:90AB:CDEF 02")
	require.Equal(t, ParseComplete, res.Status)
	ev, ok := res.Message.(ModuleEvent)
	require.True(t, ok)
	assert.Equal(t, FinishedUDPSend, ev.Kind)
}

func TestAddLineEventMalformed(t *testing.T) {
	p := NewParser()
	assert.Equal(t, ParseFailed, p.AddLine("EVENT 21").Status)
	assert.Equal(t, ParseFailed, p.AddLine("EVENT ZZ FE80:0000:0000:0000:1234:5678:90AB:CDEF").Status)
	assert.Equal(t, ParseFailed, p.AddLine("EVENT 23 FE80:0000:0000:0000:1234:5678:90AB:CDEF").Status)
	assert.Equal(t, ParseFailed, p.AddLine("EVENT 25 not-an-address").Status)
}

func TestAddLineUnknown(t *testing.T) {
	p := NewParser()
	res := p.AddLine("FOOBAR")
	require.Equal(t, ParseFailed, res.Status)
	assert.Equal(t, "FOOBAR", res.Line)
}

func TestAddLineVersion(t *testing.T) {
	p := NewParser()
	res := p.AddLine("EVER 1.2.3")
	require.Equal(t, ParseComplete, res.Status)
	assert.Equal(t, Version{Value: "1.2.3"}, res.Message)
}

func TestAddLineRxUDP(t *testing.T) {
	p := NewParser()
	res := p.AddLine("ERXUDP FE80:0000:0000:0000:1234:5678:1234:5678 FE80:0000:0000:0000:1234:5678:90AB:CDEF 0E1A 0E1A C0F9450040213077 1 0012 108100000EF0010EF0017301D50401028801")
	require.Equal(t, ParseComplete, res.Status)
	ev, ok := res.Message.(RxUDP)
	require.True(t, ok)
	assert.Equal(t, net.ParseIP("FE80::1234:5678:1234:5678"), ev.Sender)
	assert.Equal(t, net.ParseIP("FE80::1234:5678:90AB:CDEF"), ev.Dest)
	assert.Equal(t, uint16(0x0E1A), ev.SourcePort)
	assert.Equal(t, uint16(0x0E1A), ev.DestPort)
	assert.Equal(t, [8]byte{0xC0, 0xF9, 0x45, 0x00, 0x40, 0x21, 0x30, 0x77}, ev.SenderMAC)
	assert.True(t, ev.Secured)
	assert.Len(t, ev.Data, 18)
	assert.Equal(t, byte(0x10), ev.Data[0])
	assert.Equal(t, byte(0x81), ev.Data[1])
}

func TestAddLineRxUDPMalformed(t *testing.T) {
	p := NewParser()
	// token count
	assert.Equal(t, ParseFailed, p.AddLine("ERXUDP FE80:0000:0000:0000:1234:5678:1234:5678 0E1A").Status)
	// data length does not match hex dump
	assert.Equal(t, ParseFailed, p.AddLine("ERXUDP FE80:0000:0000:0000:1234:5678:1234:5678 FE80:0000:0000:0000:1234:5678:90AB:CDEF 0E1A 0E1A C0F9450040213077 1 0012 1081").Status)
}

func TestAddLinePanDescBlock(t *testing.T) {
	p := NewParser()
	lines := []string{
		"EPANDESC",
		"  Channel:20",
		"  Channel Page:09",
		"  Pan ID:3077",
		"  Addr:1234567890ABCDEF",
		"  LQI:73",
	}
	for _, l := range lines {
		assert.Equal(t, ParseMore, p.AddLine(l).Status, "line %q", l)
	}
	res := p.AddLine("  PairID:01234567")
	require.Equal(t, ParseComplete, res.Status)
	assert.Equal(t, PanDesc{
		Channel: 0x20,
		PanID:   0x3077,
		Addr:    [8]byte{0x12, 0x34, 0x56, 0x78, 0x90, 0xAB, 0xCD, 0xEF},
	}, res.Message)
}

func TestAddLinePanDescInterrupted(t *testing.T) {
	p := NewParser()
	require.Equal(t, ParseMore, p.AddLine("EPANDESC").Status)
	// a line that is no key:value continuation aborts the block
	assert.Equal(t, ParseFailed, p.AddLine("OK").Status)
	// and the pending state is gone
	res := p.AddLine("OK")
	require.Equal(t, ParseComplete, res.Status)
	assert.Equal(t, Ok{}, res.Message)
}

func TestAddLinePanDescMalformedValues(t *testing.T) {
	p := NewParser()
	for _, l := range []string{"EPANDESC", "  Channel:ZZ", "  Channel Page:09", "  Pan ID:3077", "  Addr:1234567890ABCDEF", "  LQI:73"} {
		require.Equal(t, ParseMore, p.AddLine(l).Status)
	}
	assert.Equal(t, ParseFailed, p.AddLine("  PairID:01234567").Status)
}
