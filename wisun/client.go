package wisun

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hnw/go-wisun/echonet"
	"github.com/hnw/go-wisun/serial"
)

const (
	// ECHONET Lite標準ポート
	echonetPort = 3610

	// スマートメータ側の応答はPANA再認証を挟むと数秒〜十数秒かかる
	udpTimeout = 20 * time.Second

	scanDurationMin = 4
	scanDurationMax = 9
)

// Client drives one Wi-SUN module over one serial connection. It is
// synchronous and single-threaded; all waiting happens inside ReadLine.
type Client struct {
	conn   serial.Conn
	parser *Parser
	// Messages read but not yet consumed. waitFn may skim past
	// messages unrelated to its predicate (an EPANDESC delivered
	// before the scan-finished event, say); they stay here in FIFO
	// order for later waits.
	buffer      []Message
	addr        net.IP
	propertyMap echonet.PropertyMap
	log         logrus.FieldLogger
	newTID      func() uint16
}

// Option configures a Client.
type Option func(*Client)

// WithLogger injects the process logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient wraps conn and disables the module's command echo-back so
// that written commands do not come back as input lines.
func NewClient(conn serial.Conn, opts ...Option) (*Client, error) {
	c := &Client{
		conn:   conn,
		parser: NewParser(),
		log:    logrus.StandardLogger(),
		newTID: echonet.NewTID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.ensureEchobackOff(); err != nil {
		return nil, err
	}
	return c, nil
}

// getMessage reads lines until the parser yields something final. It
// reports true when a Message was appended to the buffer and false on a
// blank line.
func (c *Client) getMessage() (bool, error) {
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			return false, err
		}
		res := c.parser.AddLine(line)
		switch res.Status {
		case ParseComplete:
			c.buffer = append(c.buffer, res.Message)
			return true, nil
		case ParseEmpty:
			return false, nil
		case ParseMore:
			continue
		case ParseFailed:
			c.log.Warnf("discarding unparsable line: %q", res.Line)
			continue
		}
	}
}

// flushMessages drops buffered messages. Called before each command so
// stale events cannot match the new wait predicate.
func (c *Client) flushMessages() {
	c.log.Debug("flushing messages")
	c.buffer = c.buffer[:0]
}

// searchOnBuffer removes and returns the earliest buffered message
// matching pred.
func (c *Client) searchOnBuffer(pred func(Message) bool) Message {
	for i, m := range c.buffer {
		if pred(m) {
			c.buffer = append(c.buffer[:i], c.buffer[i+1:]...)
			return m
		}
	}
	return nil
}

// waitFn returns the first buffered or newly arriving message matching
// pred. Non-matching arrivals are kept in the buffer unless errIf turns
// one into a command error. A zero timeout waits forever.
func (c *Client) waitFn(pred func(Message) bool, errIf func(Message) (string, bool), timeout time.Duration) (Message, error) {
	if m := c.searchOnBuffer(pred); m != nil {
		return m, nil
	}
	start := time.Now()
	for {
		if timeout > 0 && time.Since(start) > timeout {
			return nil, ErrTimeout
		}
		ok, err := c.getMessage()
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				continue
			}
			return nil, err
		}
		if ok {
			last := c.buffer[len(c.buffer)-1]
			if pred(last) {
				c.buffer = c.buffer[:len(c.buffer)-1]
				return last, nil
			}
			if reason, fatal := errIf(last); fatal {
				return nil, &CommandError{Reason: reason}
			}
		}
		time.Sleep(time.Millisecond)
	}
}

func errWhenFail(m Message) (string, bool) {
	if f, ok := m.(Fail); ok {
		return f.Code, true
	}
	return "", false
}

func isEvent(kind EventKind) func(Message) bool {
	return func(m Message) bool {
		e, ok := m.(ModuleEvent)
		return ok && e.Kind == kind
	}
}

func (c *Client) waitOK() error {
	_, err := c.waitFn(func(m Message) bool {
		_, ok := m.(Ok)
		return ok
	}, errWhenFail, 0)
	return err
}

func (c *Client) command(line string) error {
	c.flushMessages()
	if err := c.conn.WriteLine(line); err != nil {
		return errors.Wrap(err, "failed to send command")
	}
	return c.waitOK()
}

func (c *Client) ensureEchobackOff() error {
	return c.command("SKSREG SFE 0")
}

// GetVersion queries the module firmware version.
func (c *Client) GetVersion() (string, error) {
	if err := c.command("SKVER"); err != nil {
		return "", err
	}
	m, err := c.waitFn(func(m Message) bool {
		_, ok := m.(Version)
		return ok
	}, errWhenFail, 0)
	if err != nil {
		return "", err
	}
	return m.(Version).Value, nil
}

// Connect runs the whole join sequence: credentials, active scan,
// channel/PAN registers, PANA join, then property-map discovery.
func (c *Client) Connect(bid, password string) error {
	if err := c.setPassword(password); err != nil {
		return err
	}
	if err := c.setBID(bid); err != nil {
		return err
	}
	pan, err := c.scan()
	if err != nil {
		return err
	}
	if err := c.setRegister("S2", fmt.Sprintf("%X", pan.Channel)); err != nil {
		return err
	}
	if err := c.setRegister("S3", fmt.Sprintf("%X", pan.PanID)); err != nil {
		return err
	}
	ip := ipFromMAC(pan.Addr)
	if err := c.join(ip); err != nil {
		return err
	}
	c.addr = ip
	return c.GetPropertyMap()
}

func (c *Client) setPassword(password string) error {
	return c.command(fmt.Sprintf("SKSETPWD %X %s", len(password), password))
}

func (c *Client) setBID(bid string) error {
	return c.command("SKSETRBID " + bid)
}

func (c *Client) setRegister(reg, value string) error {
	return c.command(fmt.Sprintf("SKSREG %s %s", reg, value))
}

// scan runs an active scan over the duration ladder until one duration
// yields a PAN descriptor. A descriptor that arrives only after the
// scan-finished event is missed and the next duration is tried.
func (c *Client) scan() (PanDesc, error) {
	for d := scanDurationMin; d <= scanDurationMax; d++ {
		if err := c.command(fmt.Sprintf("SKSCAN 2 FFFFFFFF %d", d)); err != nil {
			return PanDesc{}, err
		}
		if _, err := c.waitFn(isEvent(FinishedActiveScan), errWhenFail, 0); err != nil {
			return PanDesc{}, err
		}
		m := c.searchOnBuffer(func(m Message) bool {
			_, ok := m.(PanDesc)
			return ok
		})
		if desc, ok := m.(PanDesc); ok {
			return desc, nil
		}
		c.log.Debugf("no PAN found with scan duration %d", d)
	}
	return PanDesc{}, &ScanError{Reason: "pan not found"}
}

func (c *Client) join(ip net.IP) error {
	if err := c.command("SKJOIN " + ipv6FullString(ip)); err != nil {
		return err
	}
	_, err := c.waitFn(isEvent(EstablishedPanaConnection), func(m Message) (string, bool) {
		switch v := m.(type) {
		case Fail:
			return v.Code, true
		case ModuleEvent:
			if v.Kind == ErrorOnPanaConnection {
				return "failed to establish PANA connection", true
			}
		}
		return "", false
	}, 0)
	return err
}

// ipFromMAC derives the module's link-local address from its EUI-64
// MAC: FE80:: with the MAC appended and the universal/local bit of the
// first byte flipped.
func ipFromMAC(mac [8]byte) net.IP {
	ip := make(net.IP, net.IPv6len)
	ip[0] = 0xFE
	ip[1] = 0x80
	copy(ip[8:], mac[:])
	ip[8] ^= 0x02
	return ip
}

// ipv6FullString renders ip in the uncompressed uppercase 8-group form
// the SK commands require.
func ipv6FullString(ip net.IP) string {
	v6 := ip.To16()
	parts := make([]string, 8)
	for i := 0; i < 8; i++ {
		parts[i] = fmt.Sprintf("%02X%02X", v6[2*i], v6[2*i+1])
	}
	return strings.Join(parts, ":")
}

func sendToBase(ip net.IP, secured byte, dataLen int) string {
	return fmt.Sprintf("SKSENDTO 1 %s %04X %d %04X ", ipv6FullString(ip), echonetPort, secured, dataLen)
}

// sendUDP transmits payload to the meter's ECHONET Lite port. The
// textual command prefix and the binary payload go out in one write.
func (c *Client) sendUDP(payload []byte) error {
	if c.addr == nil {
		return ErrNotJoined
	}
	c.flushMessages()
	base := sendToBase(c.addr, 1, len(payload))
	frame := make([]byte, 0, len(base)+len(payload)+2)
	frame = append(frame, base...)
	frame = append(frame, payload...)
	frame = append(frame, "\r\n"...)
	if err := c.conn.WriteBytes(frame); err != nil {
		return errors.Wrap(err, "failed to send UDP payload")
	}
	return c.waitOK()
}

// getProperties sends one read request and waits for the matching
// response frame from the meter.
func getProperties[P echonet.EPC](c *Client, props []P) (*echonet.Packet[P], error) {
	if err := checkPropertyExists(c, props); err != nil {
		return nil, err
	}
	tid := c.newTID()
	reqProps := make([]echonet.Property[P], len(props))
	for i, p := range props {
		reqProps[i] = echonet.Property[P]{Code: p}
	}
	packet := echonet.NewPacket(tid, echonet.Edata[P]{
		Source:      echonet.HemsController,
		Destination: echonet.SmartMeter,
		Service:     echonet.ReadPropertyRequest,
		Properties:  reqProps,
	})
	if err := c.sendUDP(packet.Dump()); err != nil {
		return nil, err
	}
	return waitEchonetPacket(c, func(p *echonet.Packet[P]) bool {
		return p.TID == tid &&
			p.Data.Source == echonet.SmartMeter &&
			p.Data.Destination == echonet.HemsController
	}, udpTimeout)
}

// checkPropertyExists gates reads on the discovered property map. The
// property-map read itself is exempt, otherwise the map could never be
// loaded.
func checkPropertyExists[P echonet.EPC](c *Client, props []P) error {
	if len(props) == 1 && uint8(props[0]) == uint8(echonet.GetPropertyMap) {
		return nil
	}
	if c.propertyMap == nil {
		return ErrNoPropertyMap
	}
	for _, p := range props {
		if !c.propertyMap.Has(uint8(p)) {
			return &CommandError{Reason: fmt.Sprintf("property %02X is not implemented by the meter", uint8(p))}
		}
	}
	return nil
}

func waitEchonetPacket[P echonet.EPC](c *Client, pred func(*echonet.Packet[P]) bool, timeout time.Duration) (*echonet.Packet[P], error) {
	m, err := c.waitFn(func(m Message) bool {
		rx, ok := m.(RxUDP)
		if !ok {
			return false
		}
		p, err := echonet.Parse[P](rx.Data)
		if err != nil {
			// PANAのパケットも同じポートに届くのでパース失敗は想定内
			c.log.Warnf("failed to parse ECHONET Lite frame: %v packet: %s", err, hex.EncodeToString(rx.Data))
			return false
		}
		return pred(p)
	}, errWhenFail, timeout)
	if err != nil {
		return nil, err
	}
	return echonet.Parse[P](m.(RxUDP).Data)
}

// GetPropertyMap reads and stores the meter's Get property map. Every
// other property read refuses to run until this succeeds.
func (c *Client) GetPropertyMap() error {
	packet, err := getProperties(c, []echonet.SuperClassProperty{echonet.GetPropertyMap})
	if err != nil {
		return err
	}
	prop, ok := packet.Property(echonet.GetPropertyMap)
	if !ok {
		return &CommandError{Reason: "property map not found in response"}
	}
	m, err := echonet.ParsePropertyMap(prop.Data)
	if err != nil {
		return err
	}
	c.log.Debugf("property map: %X", m.Codes())
	c.propertyMap = m
	return nil
}

// GetPowerConsumption reads the instantaneous electric power in watts.
func (c *Client) GetPowerConsumption() (int32, error) {
	packet, err := getProperties(c, []echonet.SmartMeterProperty{echonet.InstantaneousElectricPower})
	if err != nil {
		return 0, err
	}
	prop, ok := packet.Property(echonet.InstantaneousElectricPower)
	if !ok {
		return 0, &CommandError{Reason: "instantaneous power not found in response"}
	}
	watts, err := prop.Int32()
	if err != nil {
		return 0, &CommandError{Reason: "malformed instantaneous power property"}
	}
	return watts, nil
}

// GetInstantaneousCurrent reads the R-phase and T-phase currents in
// amperes. The meter reports both as signed deciamperes.
func (c *Client) GetInstantaneousCurrent() (r, t float64, err error) {
	packet, err := getProperties(c, []echonet.SmartMeterProperty{echonet.InstantaneousCurrent})
	if err != nil {
		return 0, 0, err
	}
	prop, ok := packet.Property(echonet.InstantaneousCurrent)
	if !ok {
		return 0, 0, &CommandError{Reason: "instantaneous current not found in response"}
	}
	if len(prop.Data) != 4 {
		return 0, 0, &CommandError{Reason: "malformed instantaneous current property"}
	}
	r = float64(int16(binary.BigEndian.Uint16(prop.Data[0:2]))) / 10.0
	t = float64(int16(binary.BigEndian.Uint16(prop.Data[2:4]))) / 10.0
	return r, t, nil
}

// GetCumulativeElectricEnergy reads the normal-direction cumulative
// energy in kWh: the raw counter scaled by the unit register and the
// meter coefficient.
func (c *Client) GetCumulativeElectricEnergy() (float64, error) {
	packet, err := getProperties(c, []echonet.SmartMeterProperty{
		echonet.NormalDirectionCumulativeElectricEnergy,
		echonet.UnitForCumulativeElectricEnergy,
		echonet.Coefficient,
	})
	if err != nil {
		return 0, err
	}
	baseProp, ok := packet.Property(echonet.NormalDirectionCumulativeElectricEnergy)
	if !ok {
		return 0, &CommandError{Reason: "cumulative energy not found in response"}
	}
	base, err := baseProp.Uint32()
	if err != nil {
		return 0, &CommandError{Reason: "malformed cumulative energy property"}
	}
	unitProp, ok := packet.Property(echonet.UnitForCumulativeElectricEnergy)
	if !ok || len(unitProp.Data) == 0 {
		return 0, &CommandError{Reason: "cumulative energy unit not found in response"}
	}
	unit, err := cumulativeEnergyUnit(unitProp.Data[0])
	if err != nil {
		return 0, err
	}
	coefProp, ok := packet.Property(echonet.Coefficient)
	if !ok {
		return 0, &CommandError{Reason: "coefficient not found in response"}
	}
	coefficient, err := coefProp.Uint32()
	if err != nil {
		return 0, &CommandError{Reason: "malformed coefficient property"}
	}
	c.log.Debugf("base: %d, unit: %g, coefficient: %d", base, unit, coefficient)
	return float64(base) * unit * float64(coefficient), nil
}

// cumulativeEnergyUnit maps the E1 register to a kWh multiplier.
func cumulativeEnergyUnit(b byte) (float64, error) {
	switch b {
	case 0x00:
		return 1, nil
	case 0x01:
		return 0.1, nil
	case 0x02:
		return 0.01, nil
	case 0x03:
		return 0.001, nil
	case 0x04:
		return 0.0001, nil
	case 0x0A:
		return 10, nil
	case 0x0B:
		return 100, nil
	case 0x0C:
		return 1000, nil
	case 0x0D:
		return 10000, nil
	}
	return 0, &CommandError{Reason: fmt.Sprintf("unexpected cumulative energy unit %02X", b)}
}
