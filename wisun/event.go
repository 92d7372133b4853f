package wisun

import (
	"encoding/hex"
	"net"
	"strconv"
	"strings"
)

// parseModuleEvent handles "EVENT <hh> <ipv6> [param]".
func parseModuleEvent(text string) ParseResult {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return failed(text)
	}
	code, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return failed(text)
	}
	kind := EventKind(code)
	if !kind.known() {
		return failed(text)
	}
	ip := net.ParseIP(parts[2])
	if ip == nil {
		return failed(text)
	}
	return complete(ModuleEvent{Kind: kind, Sender: ip})
}

// parseRxUDP handles
// "ERXUDP <src> <dst> <sport> <dport> <mac> <secured> <len> <hexdata>".
func parseRxUDP(text string) ParseResult {
	parts := strings.Fields(text)
	if len(parts) != 9 {
		return failed(text)
	}
	sender := net.ParseIP(parts[1])
	dest := net.ParseIP(parts[2])
	if sender == nil || dest == nil {
		return failed(text)
	}
	sport, err := strconv.ParseUint(parts[3], 16, 16)
	if err != nil {
		return failed(text)
	}
	dport, err := strconv.ParseUint(parts[4], 16, 16)
	if err != nil {
		return failed(text)
	}
	mac, err := hex.DecodeString(parts[5])
	if err != nil || len(mac) != 8 {
		return failed(text)
	}
	secured, err := strconv.ParseUint(parts[6], 16, 8)
	if err != nil {
		return failed(text)
	}
	dataLen, err := strconv.ParseUint(parts[7], 16, 16)
	if err != nil {
		return failed(text)
	}
	if int(dataLen)*2 != len(parts[8]) {
		return failed(text)
	}
	data, err := hex.DecodeString(parts[8])
	if err != nil {
		return failed(text)
	}
	ev := RxUDP{
		Sender:     sender,
		Dest:       dest,
		SourcePort: uint16(sport),
		DestPort:   uint16(dport),
		Secured:    secured != 0,
		Data:       data,
	}
	copy(ev.SenderMAC[:], mac)
	return complete(ev)
}

// EPANDESCブロックは計7行（ヘッダ + key:value 6行）
const panDescLines = 7

// parsePanDesc handles the multi-line EPANDESC block. text is the
// block accumulated so far, one input line per "\n".
func parsePanDesc(text string) ParseResult {
	lines := strings.Split(text, "\n")
	if len(lines) < panDescLines {
		// A continuation that is not key:value-shaped means the
		// block was interrupted; give it up instead of swallowing
		// lines forever.
		for _, l := range lines[1:] {
			if !strings.Contains(l, ":") {
				return failed(text)
			}
		}
		return ParseResult{Status: ParseMore}
	}
	kv := make(map[string]string, panDescLines-1)
	for _, l := range lines[1:panDescLines] {
		key, value, ok := strings.Cut(strings.TrimSpace(l), ":")
		if !ok {
			return failed(text)
		}
		kv[key] = value
	}
	channel, err := strconv.ParseUint(kv["Channel"], 16, 8)
	if err != nil {
		return failed(text)
	}
	panID, err := strconv.ParseUint(kv["Pan ID"], 16, 16)
	if err != nil {
		return failed(text)
	}
	addr, err := hex.DecodeString(kv["Addr"])
	if err != nil || len(addr) != 8 {
		return failed(text)
	}
	desc := PanDesc{Channel: uint8(channel), PanID: uint16(panID)}
	copy(desc.Addr[:], addr)
	return complete(desc)
}
