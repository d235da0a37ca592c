package probe

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// ICMP message types used on the wire.
const (
	TypeEchoReply       = 0
	TypeDestUnreachable = 3
	TypeEchoRequest     = 8
)

// Destination unreachable codes.
const (
	CodeNetUnreachable      = 0
	CodeHostUnreachable     = 1
	CodeProtocolUnreachable = 2
	CodePortUnreachable     = 3
)

const (
	// HeaderLen is the size of the ICMP header
	HeaderLen = 8

	// EchoPayloadLen is the size of the timestamp carried by echo requests
	EchoPayloadLen = 8

	ipv4MinHeaderLen = 20
	protoICMP        = 1
	protoTCP         = 6
	protoUDP         = 17
)

// Codec encodes and decodes ICMP-shaped packets.
//
// Order is the byte order of the 16-bit header fields and of the checksum
// sum. SwapChecksum byte-swaps the computed checksum before it is written,
// the way a host passing its native sum through htons does. Peers must use
// the same SwapChecksum setting for packets to validate.
type Codec struct {
	Order        binary.ByteOrder
	SwapChecksum bool
}

// DefaultCodec returns a codec using network byte order.
func DefaultCodec() Codec {
	return Codec{Order: binary.BigEndian}
}

// ParseByteOrder parses a byte order name: big (or network) and little.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "big", "network", "":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", s)
	}
}

func (c Codec) order() binary.ByteOrder {
	if c.Order == nil {
		return binary.BigEndian
	}
	return c.Order
}

// Marshal builds a packet with the given header fields and payload and
// fills in the checksum.
func (c Codec) Marshal(typ, code uint8, id, seq uint16, payload []byte) []byte {
	order := c.order()

	buf := make([]byte, HeaderLen+len(payload))
	buf[0] = typ
	buf[1] = code
	order.PutUint16(buf[4:6], id)
	order.PutUint16(buf[6:8], seq)
	copy(buf[HeaderLen:], payload)

	sum := ChecksumOrder(order, buf)
	if c.SwapChecksum {
		sum = swap16(sum)
	}
	order.PutUint16(buf[2:4], sum)

	return buf
}

// EncodeEchoRequest builds an echo request whose payload is the send time
// as an 8-byte float of seconds since the epoch.
func (c Codec) EncodeEchoRequest(id, seq uint16, sent time.Time) []byte {
	payload := make([]byte, EchoPayloadLen)
	c.order().PutUint64(payload, math.Float64bits(unixSeconds(sent)))
	return c.Marshal(TypeEchoRequest, 0, id, seq, payload)
}

// EncodeError builds an error packet. Identifier and sequence are zero
// since errors are addressed host to host. quote may be nil.
func (c Codec) EncodeError(typ, code uint8, quote []byte) []byte {
	return c.Marshal(typ, code, 0, 0, quote)
}

// Valid reports whether a packet's checksum verifies under the codec's
// settings.
func (c Codec) Valid(packet []byte) bool {
	if !c.SwapChecksum || len(packet) < HeaderLen {
		return ValidateChecksumOrder(c.order(), packet)
	}
	unswapped := append([]byte(nil), packet...)
	unswapped[2], unswapped[3] = packet[3], packet[2]
	return ValidateChecksumOrder(c.order(), unswapped)
}

// Header is a decoded ICMP header.
type Header struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	ID       uint16
	Seq      uint16
}

// ParseHeader reads the ICMP header at the start of packet.
func (c Codec) ParseHeader(packet []byte) (Header, error) {
	if len(packet) < HeaderLen {
		return Header{}, ErrInvalidPacket
	}
	order := c.order()
	return Header{
		Type:     packet[0],
		Code:     packet[1],
		Checksum: order.Uint16(packet[2:4]),
		ID:       order.Uint16(packet[4:6]),
		Seq:      order.Uint16(packet[6:8]),
	}, nil
}

// Expect describes the probe a receiver is waiting on.
type Expect struct {
	// ID and Seq must match an echo reply or a quoted echo request
	ID  uint16
	Seq uint16

	// LocalPort and RemotePort identify a UDP or TCP probe. When set, only
	// unreachable reports quoting these ports match and echo replies are
	// ignored.
	LocalPort  int
	RemotePort int
}

func (e Expect) transport() bool {
	return e.LocalPort != 0 || e.RemotePort != 0
}

// Decode interprets an inbound buffer. A leading IPv4 header is skipped
// using its length field. The second result is false when the buffer does
// not belong to the expected probe, including malformed buffers and
// checksum mismatches; the receive loop keeps waiting in that case.
func (c Codec) Decode(buf []byte, expect Expect, received time.Time) (Outcome, bool) {
	packet, ok := stripIPv4(buf)
	if !ok || len(packet) < HeaderLen || !c.Valid(packet) {
		return Outcome{Kind: KindMalformed}, false
	}

	h, _ := c.ParseHeader(packet)
	body := packet[HeaderLen:]

	switch h.Type {
	case TypeEchoReply:
		if expect.transport() || h.ID != expect.ID || h.Seq != expect.Seq {
			return Outcome{}, false
		}
		if len(body) < EchoPayloadLen {
			return Outcome{Kind: KindMalformed}, false
		}
		sent := fromUnixSeconds(math.Float64frombits(c.order().Uint64(body[:EchoPayloadLen])))
		rtt := received.Sub(sent)
		if rtt < 0 {
			rtt = 0
		}
		return Outcome{Seq: int(h.Seq), Kind: KindReply, RTT: rtt}, true

	case TypeDestUnreachable:
		if !c.quoteMatches(body, expect) {
			return Outcome{}, false
		}
		return Outcome{Seq: int(expect.Seq), Kind: KindUnreachable, Code: int(h.Code)}, true
	}

	return Outcome{}, false
}

// quoteMatches checks the offending packet carried by an unreachable
// report. Reports without a usable quote are accepted.
func (c Codec) quoteMatches(quote []byte, expect Expect) bool {
	if len(quote) < ipv4MinHeaderLen+8 || quote[0]>>4 != 4 {
		return true
	}
	ihl := int(quote[0]&0x0f) * 4
	if ihl < ipv4MinHeaderLen || len(quote) < ihl+8 {
		return true
	}

	inner := quote[ihl:]
	switch quote[9] {
	case protoICMP:
		if expect.transport() || inner[0] != TypeEchoRequest {
			return false
		}
		order := c.order()
		return order.Uint16(inner[4:6]) == expect.ID && order.Uint16(inner[6:8]) == expect.Seq
	case protoUDP, protoTCP:
		if !expect.transport() {
			return false
		}
		src := int(binary.BigEndian.Uint16(inner[0:2]))
		dst := int(binary.BigEndian.Uint16(inner[2:4]))
		return (expect.LocalPort == 0 || src == expect.LocalPort) &&
			(expect.RemotePort == 0 || dst == expect.RemotePort)
	}
	return false
}

// stripIPv4 removes a leading IPv4 header. Buffers whose first nibble is
// not 4 are returned unchanged, since sockets may deliver bare ICMP.
func stripIPv4(buf []byte) ([]byte, bool) {
	if len(buf) == 0 || buf[0]>>4 != 4 {
		return buf, true
	}
	ihl := int(buf[0]&0x0f) * 4
	if ihl < ipv4MinHeaderLen || len(buf) < ihl {
		return nil, false
	}
	return buf[ihl:], true
}

func swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}
