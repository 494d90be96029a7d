// Package config manages the tuyalocal device registry.
//
// The registry is a YAML file listing the devices to control (id, host,
// local key, type) and a few application preferences. It follows OS-specific
// conventions for storage location unless --config points elsewhere:
//   - Linux: $XDG_CONFIG_HOME/tuyalocal/config.yaml or $HOME/.config/tuyalocal/config.yaml
//   - macOS: $HOME/.config/tuyalocal/config.yaml
//   - Windows: %LOCALAPPDATA%\tuyalocal\config.yaml
//
// # Example
//
//	version: 1
//	devices:
//	  bf1234567890abcd:
//	    name: Desk Lamp
//	    host: 192.168.1.42
//	    local_key: 0123456789abcdef
//	    type: bulb
//	preferences:
//	  poll_interval: 30s
//	  connect_timeout: 10s
//	  listen_addr: ":8668"
//	  advertise: true
//
// # Security
//
// Local keys are stored in plain text; the file is written with 0600
// permissions in a 0700 directory.
//
// # Usage
//
//	reg, err := config.Load(configPath) // empty path: default location
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := reg.SetDevice(id, dev); err != nil {
//	    log.Fatal(err)
//	}
//	if err := reg.Save(); err != nil {
//	    log.Fatal(err)
//	}
package config
