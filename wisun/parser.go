// Package wisun drives a Wi-SUN Route-B radio module over its serial
// SK command protocol: it classifies module output into typed messages,
// runs the scan/join handshake, and exchanges ECHONET Lite frames with
// the smart meter on the far side of the PAN.
package wisun

import "strings"

// Parser turns the module's output lines into Messages. It holds at
// most one pending multi-line EPANDESC block between calls.
type Parser struct {
	pending    string
	hasPending bool
}

func NewParser() *Parser {
	return &Parser{}
}

// AddLine feeds one line (already stripped of its terminator). The
// pending block survives only a ParseMore result; every other outcome
// clears it.
func (p *Parser) AddLine(line string) ParseResult {
	line = strings.TrimRight(line, " \r")
	if !p.hasPending && len(line) == 0 {
		return ParseResult{Status: ParseEmpty}
	}

	text := line
	if p.hasPending {
		text = p.pending + "\n" + line
	}
	p.pending = ""
	p.hasPending = false

	res := classify(text)
	if res.Status == ParseMore {
		p.pending = text
		p.hasPending = true
	}
	return res
}

func classify(text string) ParseResult {
	switch {
	case text == "OK":
		return complete(Ok{})
	case strings.HasPrefix(text, "FAIL "):
		return complete(Fail{Code: strings.TrimPrefix(text, "FAIL ")})
	case strings.HasPrefix(text, "EVENT "):
		return parseModuleEvent(text)
	case strings.HasPrefix(text, "ERXUDP "):
		return parseRxUDP(text)
	case strings.HasPrefix(text, "EPANDESC"):
		return parsePanDesc(text)
	case strings.HasPrefix(text, "EVER "):
		return complete(Version{Value: strings.TrimPrefix(text, "EVER ")})
	}
	return failed(text)
}
