// Package discovery finds Tuya devices and tuyalocal bridges on the local network.
//
// Tuya devices announce themselves every few seconds with a plaintext frame
// broadcast on UDP port 6666. The Scanner listens for those announcements,
// decodes them with protocol.ParseBroadcast and returns one Device per gwId
// once the timeout expires.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Printf("Found: %s at %s (v%s)\n", d.ID, d.IP, d.Version)
//	}
//
// Announcements carry neither the device name nor its local key; those
// must still be added to the registry by hand.
//
// # Bridge Advertisement
//
// A running bridge server registers itself over mDNS as "_tuyalocal._tcp"
// with Advertise, and BrowseBridges lists the bridges visible on the LAN.
//
// # Network Requirements
//
// - Devices must be on the same broadcast domain
// - Firewall must allow UDP port 6666 (announcements) and 5353 (mDNS)
package discovery
