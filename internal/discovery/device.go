package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/tuyalocal/internal/protocol"
)

// Device represents a device that announced itself on the LAN
type Device struct {
	// ID is the device id (gwId), e.g. "bf1234567890abcd"
	ID string

	// IP is the IPv4 address from the announcement, or the sender address
	IP string

	// Port is the control port (always 6668 for 3.1 devices)
	Port int

	// Version is the protocol version the device speaks (e.g. "3.1")
	Version string

	// ProductKey identifies the product model
	ProductKey string

	// Encrypt reports whether the device expects encrypted commands
	Encrypt bool

	// DiscoveredAt is when the device was first seen in this scan
	DiscoveredAt time.Time
}

func newDevice(b *protocol.Broadcast, sender net.Addr) *Device {
	ip := b.IP
	if ip == "" && sender != nil {
		if udp, ok := sender.(*net.UDPAddr); ok {
			ip = udp.IP.String()
		}
	}
	return &Device{
		ID:           b.GwID,
		IP:           ip,
		Port:         protocol.DefaultPort,
		Version:      b.Version,
		ProductKey:   b.ProductKey,
		Encrypt:      b.Encrypt,
		DiscoveredAt: time.Now(),
	}
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Tuya Device %s (v%s) at %s", d.ID, d.Version, d.Address())
}

// Address returns host:port for the control connection
func (d *Device) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Supported reports whether the device speaks a protocol version this client implements
func (d *Device) Supported() bool {
	return d.Version == "" || d.Version == protocol.ProtocolVersion
}
