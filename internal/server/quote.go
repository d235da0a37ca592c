package server

import (
	"encoding/binary"
	"net"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"golang.org/x/net/ipv4"
)

// IP protocol numbers of the transports a flow can carry.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// Flow identifies the datagram or segment an error packet reports on.
type Flow struct {
	Proto      int
	ClientIP   net.IP
	ClientPort int
	ServerIP   net.IP
	ServerPort int
}

// FlowOf builds the flow of a message that client sent to server.
func FlowOf(proto int, client, server net.Addr) Flow {
	f := Flow{Proto: proto}
	f.ClientIP, f.ClientPort = hostPort(client)
	f.ServerIP, f.ServerPort = hostPort(server)
	return f
}

func hostPort(addr net.Addr) (net.IP, int) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP, a.Port
	case *net.TCPAddr:
		return a.IP, a.Port
	default:
		return nil, 0
	}
}

// Quote builds the offending-packet excerpt carried by an error: the IPv4
// header of the client's message followed by the first 8 bytes of its
// transport header, which hold the ports.
func Quote(f Flow) []byte {
	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + 8,
		TTL:      64,
		Protocol: f.Proto,
		Src:      f.ClientIP.To4(),
		Dst:      f.ServerIP.To4(),
	}
	if h.Src == nil {
		h.Src = net.IPv4zero.To4()
	}
	if h.Dst == nil {
		h.Dst = net.IPv4zero.To4()
	}

	b, err := h.Marshal()
	if err != nil {
		return nil
	}
	binary.BigEndian.PutUint16(b[10:12], probe.Checksum(b))

	transport := make([]byte, 8)
	binary.BigEndian.PutUint16(transport[0:2], uint16(f.ClientPort))
	binary.BigEndian.PutUint16(transport[2:4], uint16(f.ServerPort))
	return append(b, transport...)
}
