// Package echonet implements the ECHONET Lite frame codec carried in
// the Wi-SUN module's UDP payloads, plus the property-map descriptor
// used to discover which properties a meter actually implements.
package echonet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
)

const (
	ehd1 byte = 0x10 // ECHONET Lite規格
	ehd2 byte = 0x81 // 電文形式1
)

// Packet is one ECHONET Lite frame. The type parameter pins which
// property-code enum the frame may carry, so a smart-meter packet and a
// superclass packet are distinct types.
type Packet[P EPC] struct {
	TID  uint16
	Data Edata[P]
}

// Edata is the frame body following the 4-byte header.
type Edata[P EPC] struct {
	Source      Object // SEOJ
	Destination Object // DEOJ
	Service     Service
	Properties  []Property[P]
}

// Property is one EPC/PDC/EDT triple. Data is empty in read requests.
type Property[P EPC] struct {
	Code P
	Data []byte
}

// NewPacket builds a packet from a transaction id and body.
func NewPacket[P EPC](tid uint16, data Edata[P]) *Packet[P] {
	return &Packet[P]{TID: tid, Data: data}
}

// NewTID returns a fresh random transaction id.
func NewTID() uint16 {
	return uint16(rand.Int31n(0x10000))
}

// Dump serializes the packet. All multi-byte integers are big-endian on
// the wire regardless of host.
func (p *Packet[P]) Dump() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(ehd1)
	buf.WriteByte(ehd2)
	binary.Write(buf, binary.BigEndian, p.TID)
	seoj := p.Data.Source.Bytes()
	buf.Write(seoj[:])
	deoj := p.Data.Destination.Bytes()
	buf.Write(deoj[:])
	buf.WriteByte(byte(p.Data.Service))
	buf.WriteByte(byte(len(p.Data.Properties)))
	for _, prop := range p.Data.Properties {
		buf.WriteByte(byte(prop.Code))
		buf.WriteByte(byte(len(prop.Data)))
		buf.Write(prop.Data)
	}
	return buf.Bytes()
}

// Property returns the first property carrying code.
func (p *Packet[P]) Property(code P) (Property[P], bool) {
	for _, prop := range p.Data.Properties {
		if prop.Code == code {
			return prop, true
		}
	}
	return Property[P]{}, false
}

// Parse decodes an ECHONET Lite frame. Bytes beyond the last declared
// property are ignored; the serial module pads some frames.
func Parse[P EPC](bin []byte) (*Packet[P], error) {
	if len(bin) < 4 {
		return nil, ParseError("frame is shorter than the 4-byte header")
	}
	if bin[0] != ehd1 || bin[1] != ehd2 {
		return nil, ParseError(fmt.Sprintf("unknown frame header %02X%02X", bin[0], bin[1]))
	}
	tid := binary.BigEndian.Uint16(bin[2:4])
	edata, err := parseEdata[P](bin[4:])
	if err != nil {
		return nil, err
	}
	return &Packet[P]{TID: tid, Data: edata}, nil
}

func parseEdata[P EPC](bin []byte) (Edata[P], error) {
	var edata Edata[P]
	if len(bin) < 8 {
		return edata, ParseError("Edata is shorter than 8 bytes")
	}
	seoj, err := ObjectFromBytes(bin[0:3])
	if err != nil {
		return edata, err
	}
	deoj, err := ObjectFromBytes(bin[3:6])
	if err != nil {
		return edata, err
	}
	service := Service(bin[6])
	if !service.Valid() {
		return edata, ParseError(fmt.Sprintf("unknown service code %02X", bin[6]))
	}
	opc := int(bin[7])
	edata.Source = seoj
	edata.Destination = deoj
	edata.Service = service
	edata.Properties = make([]Property[P], 0, opc)
	pos := 8
	for i := 0; i < opc; i++ {
		prop, n, err := parseProperty[P](bin[pos:])
		if err != nil {
			return edata, err
		}
		pos += n
		edata.Properties = append(edata.Properties, prop)
	}
	return edata, nil
}

func parseProperty[P EPC](bin []byte) (Property[P], int, error) {
	var prop Property[P]
	if len(bin) < 2 {
		return prop, 0, ParseError("property is shorter than 2 bytes")
	}
	code := P(bin[0])
	if !code.Valid() {
		return prop, 0, ParseError(fmt.Sprintf("unknown property code %02X", bin[0]))
	}
	pdc := int(bin[1])
	if len(bin) < 2+pdc {
		return prop, 0, ParseError("property data is shorter than its PDC")
	}
	data := make([]byte, pdc)
	copy(data, bin[2:2+pdc])
	prop.Code = code
	prop.Data = data
	return prop, 2 + pdc, nil
}

// Int32 reinterprets the EDT as a big-endian signed 32-bit integer.
func (p Property[P]) Int32() (int32, error) {
	if len(p.Data) != 4 {
		return 0, ParseError(fmt.Sprintf("property %02X is not a 4-byte number", uint8(p.Code)))
	}
	return int32(binary.BigEndian.Uint32(p.Data)), nil
}

// Uint32 reinterprets the EDT as a big-endian unsigned 32-bit integer.
func (p Property[P]) Uint32() (uint32, error) {
	if len(p.Data) != 4 {
		return 0, ParseError(fmt.Sprintf("property %02X is not a 4-byte number", uint8(p.Code)))
	}
	return binary.BigEndian.Uint32(p.Data), nil
}
