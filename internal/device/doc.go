// Package device maintains sessions with Tuya 3.1 devices on the local network.
//
// A Session owns one TCP stream to a device (port 6668). Subscribe connects,
// registers a single observer and starts a listener goroutine that requests
// status and then blocks reading frames. Every decoded status replaces the
// session's last known state and is passed to the observer on the listener
// goroutine.
//
// # Failure handling
//
//   - Connect errors are logged and leave the session without a socket; the
//     next send or listener iteration tries again.
//   - A send is attempted up to five times with a reconnect between failed
//     attempts; after that the command fails with a network DeviceError.
//   - Read errors reconnect and re-request status, paced by exponential backoff.
//   - Decode errors are logged and trigger a fresh status request.
//   - Out-of-range arguments fail with a validation DeviceError before any I/O.
//   - A listener that died (e.g. the observer panicked) is restarted by the
//     next successful send.
//
// The last known state is never cleared on disconnect; observers simply stop
// receiving updates.
//
// # Usage
//
//	bulb, err := device.NewBulb(device.Config{
//	    ID:       "bf1234567890abcd",
//	    Address:  "192.168.1.42",
//	    LocalKey: []byte("0123456789abcdef"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer bulb.Close()
//
//	_ = bulb.Subscribe(func(st protocol.Status) {
//	    fmt.Println(st.DPS())
//	})
//	if err := bulb.SetColor(255, 128, 0, 200); err != nil {
//	    return err
//	}
package device
