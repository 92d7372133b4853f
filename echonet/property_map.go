package echonet

import (
	"fmt"
	"sort"
)

// PropertyMap is the set of EPCs a remote object implements, decoded
// from the Get-Property-Map descriptor (EPC 0x9F).
type PropertyMap map[uint8]struct{}

// ParsePropertyMap decodes the 1–17-byte property map description
// format. Byte 0 is the property count n; when n < 16 the EPCs follow
// verbatim, otherwise the remaining 16 bytes are a bitmap where byte i
// bit j denotes EPC ((8+j)<<4)|i.
func ParsePropertyMap(bin []byte) (PropertyMap, error) {
	if len(bin) == 0 {
		return nil, ParseError("property map is empty")
	}
	n := int(bin[0])
	if n < 16 {
		if len(bin)-1 != n {
			return nil, ParseError(fmt.Sprintf("property map count %d does not match %d codes", n, len(bin)-1))
		}
		m := make(PropertyMap, n)
		for _, epc := range bin[1:] {
			m[epc] = struct{}{}
		}
		return m, nil
	}
	if len(bin) != 17 {
		return nil, ParseError("property map length MUST be 17 in bitmap form")
	}
	m := make(PropertyMap, n)
	for i := 0; i < 16; i++ {
		for j := 0; j < 8; j++ {
			if bin[1+i]&(1<<j) != 0 {
				m[uint8(i)|uint8(8+j)<<4] = struct{}{}
			}
		}
	}
	if len(m) != n {
		return nil, ParseError(fmt.Sprintf("property map count %d does not match %d bits set", n, len(m)))
	}
	return m, nil
}

// Has reports whether the object implements epc.
func (m PropertyMap) Has(epc uint8) bool {
	_, ok := m[epc]
	return ok
}

// Codes returns the EPCs in ascending order.
func (m PropertyMap) Codes() []uint8 {
	codes := make([]uint8, 0, len(m))
	for epc := range m {
		codes = append(codes, epc)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
