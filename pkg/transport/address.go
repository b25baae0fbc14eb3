package transport

import (
	"fmt"
	"net"
)

// DefaultPort is the port the echo service listens on.
const DefaultPort = 4433

// PeerAddress identifies a remote peer by network address and transport type.
type PeerAddress struct {
	// Addr is the network address of the peer.
	Addr net.Addr
	// TransportType identifies the transport (TCP or Pipe).
	TransportType TransportType
}

// String returns a human-readable representation of the peer address.
func (p PeerAddress) String() string {
	if p.Addr == nil {
		return fmt.Sprintf("%s:<nil>", p.TransportType)
	}
	return fmt.Sprintf("%s:%s", p.TransportType, p.Addr.String())
}

// IsValid returns true if the peer address has a valid transport type and address.
func (p PeerAddress) IsValid() bool {
	return p.TransportType.IsValid() && p.Addr != nil
}

// NewTCPPeerAddress creates a PeerAddress for a TCP peer.
func NewTCPPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{
		Addr:          addr,
		TransportType: TransportTypeTCP,
	}
}

// PeerAddressOf classifies addr by its concrete type.
func PeerAddressOf(addr net.Addr) PeerAddress {
	switch addr.(type) {
	case *net.TCPAddr:
		return NewTCPPeerAddress(addr)
	case PipeAddr:
		return PeerAddress{Addr: addr, TransportType: TransportTypePipe}
	default:
		return PeerAddress{Addr: addr}
	}
}

// TCPAddrFromString parses an address string and creates a TCP PeerAddress.
func TCPAddrFromString(addr string) (PeerAddress, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewTCPPeerAddress(tcpAddr), nil
}
