package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/protocol"
)

const (
	// DefaultScanTimeout is the default timeout for device discovery.
	// Devices announce themselves every few seconds.
	DefaultScanTimeout = 10 * time.Second

	maxDatagram = 4096
)

// Scanner listens for the UDP announcements devices broadcast on port 6666
type Scanner struct {
	// Timeout is the maximum time to listen
	Timeout time.Duration

	// ListenAddr defaults to ":6666"
	ListenAddr string

	// Found, if set, is called once per newly discovered device
	Found func(*Device)
}

// NewScanner creates a new scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:    DefaultScanTimeout,
		ListenAddr: ":" + strconv.Itoa(protocol.BroadcastPort),
	}
}

// ScanForDevices discovers devices until the timeout expires
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext discovers devices with a custom context
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	conn, err := net.ListenPacket("udp4", s.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for broadcasts on %s: %w", s.ListenAddr, err)
	}
	return s.Scan(ctx, conn, "")
}

// WaitForDevice listens until the device with the given id announces itself
func (s *Scanner) WaitForDevice(ctx context.Context, id string) (*Device, error) {
	conn, err := net.ListenPacket("udp4", s.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for broadcasts on %s: %w", s.ListenAddr, err)
	}
	devices, err := s.Scan(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %s not found within timeout", id)
}

// Scan reads announcements from conn until the timeout expires, ctx is
// cancelled, or (when stopAt is not empty) the device stopAt is seen.
// Devices are de-duplicated by id and returned sorted by id. Scan closes conn.
func (s *Scanner) Scan(ctx context.Context, conn net.PacketConn, stopAt string) ([]*Device, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Closing the socket unblocks ReadFrom when the context ends
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	seen := make(map[string]*Device)
	buf := make([]byte, maxDatagram)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			return nil, fmt.Errorf("failed to read broadcast: %w", err)
		}

		b, err := protocol.ParseBroadcast(buf[:n])
		if err != nil {
			logging.Debug("Ignoring datagram", zap.Stringer("from", addr), zap.Error(err))
			continue
		}
		if _, dup := seen[b.GwID]; dup {
			continue
		}

		d := newDevice(b, addr)
		seen[d.ID] = d
		logging.Info("Device discovered",
			zap.String("device_id", d.ID),
			zap.String("ip", d.IP),
			zap.String("version", d.Version),
		)
		if s.Found != nil {
			s.Found(d)
		}
		if stopAt != "" && d.ID == stopAt {
			break
		}
	}

	devices := make([]*Device, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// ScanForDevices is a convenience function to scan for devices with a custom timeout
func ScanForDevices(timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices()
}
