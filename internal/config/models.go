package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/entity"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// Defaults for Preferences
const (
	DefaultPollInterval = 30 * time.Second
	DefaultListenAddr   = ":8668"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device id (gwId)
	Preferences *Preferences       `yaml:"preferences,omitempty"`

	// path the registry was loaded from; empty means the default location
	path string
}

// Device is one configured device
type Device struct {
	Name     string    `yaml:"name"`
	Host     string    `yaml:"host"`
	Port     int       `yaml:"port,omitempty"`      // 0 means 6668
	LocalKey string    `yaml:"local_key"`           // 16 characters
	Type     string    `yaml:"type,omitempty"`      // switch, diffuser, humidifier, dimmer, bulb
	Version  string    `yaml:"version,omitempty"`   // protocol version seen in discovery
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery time
}

// Preferences represents application-wide preferences.
type Preferences struct {
	PollInterval   time.Duration `yaml:"poll_interval"`           // Status poll interval
	ConnectTimeout time.Duration `yaml:"connect_timeout"`         // TCP connect timeout per device
	ListenAddr     string        `yaml:"listen_addr"`             // Bridge server listen address
	Advertise      bool          `yaml:"advertise"`               // Advertise the bridge via mDNS
	DiscoverTime   time.Duration `yaml:"discover_time,omitempty"` // LAN scan duration
}

func defaultPreferences() *Preferences {
	return &Preferences{
		PollInterval:   DefaultPollInterval,
		ConnectTimeout: device.DefaultConnectTimeout,
		ListenAddr:     DefaultListenAddr,
		Advertise:      true,
		DiscoverTime:   10 * time.Second,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// Path returns the file the registry was loaded from, if any
func (r *Registry) Path() string {
	return r.path
}

// GetDevice retrieves a device by id.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(id string) *Device {
	return r.Devices[id]
}

// FindDevice looks a device up by id or by name
func (r *Registry) FindDevice(idOrName string) (string, *Device, bool) {
	if d, ok := r.Devices[idOrName]; ok {
		return idOrName, d, true
	}
	for _, id := range r.DeviceIDs() {
		if r.Devices[id].Name == idOrName {
			return id, r.Devices[id], true
		}
	}
	return "", nil, false
}

// DeviceIDs returns the configured ids in sorted order
func (r *Registry) DeviceIDs() []string {
	ids := make([]string, 0, len(r.Devices))
	for id := range r.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetDevice adds or replaces a device after validating it
func (r *Registry) SetDevice(id string, d *Device) error {
	if err := d.Validate(id); err != nil {
		return err
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[id] = d
	return nil
}

// RemoveDevice deletes a device; it reports whether it existed
func (r *Registry) RemoveDevice(id string) bool {
	if _, ok := r.Devices[id]; !ok {
		return false
	}
	delete(r.Devices, id)
	return true
}

// UpdateDeviceLastSeen records a discovery sighting of a configured device.
// Unknown ids are ignored; discovery does not reveal the local key.
func (r *Registry) UpdateDeviceLastSeen(id, host, version string) bool {
	d, ok := r.Devices[id]
	if !ok {
		return false
	}
	d.Host = host
	d.Version = version
	d.LastSeen = time.Now()
	return true
}

// Validate checks a device entry
func (d *Device) Validate(id string) error {
	if id == "" {
		return fmt.Errorf("device id is required")
	}
	if d.Host == "" {
		return fmt.Errorf("device %s: host is required", id)
	}
	if len(d.LocalKey) != protocol.KeySize {
		return fmt.Errorf("device %s: local_key must be %d characters, got %d", id, protocol.KeySize, len(d.LocalKey))
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("device %s: invalid port %d", id, d.Port)
	}
	if _, err := entity.ParseKind(d.Type); err != nil {
		return fmt.Errorf("device %s: %w", id, err)
	}
	return nil
}

// Kind returns the parsed device type (switch when unset)
func (d *Device) Kind() entity.Kind {
	k, err := entity.ParseKind(d.Type)
	if err != nil {
		return entity.KindSwitch
	}
	return k
}

// SessionConfig builds the session config for a device
func (d *Device) SessionConfig(id string, prefs *Preferences) device.Config {
	cfg := device.Config{
		ID:       id,
		Address:  d.Host,
		Port:     d.Port,
		LocalKey: []byte(d.LocalKey),
	}
	if prefs != nil {
		cfg.ConnectTimeout = prefs.ConnectTimeout
	}
	return cfg
}

// DisplayName returns the name, or the id when unnamed
func (d *Device) DisplayName(id string) string {
	if d.Name != "" {
		return d.Name
	}
	return id
}
