// Package bridge ties configured devices together for long-running use.
//
// A Hub owns one entity per device from the registry, starts their status
// listeners, and fans every state change out to subscribers such as the
// WebSocket server or the watch UI. Commands arrive as Command values
// ({device, action, params}) and are dispatched to the matching entity.
//
// A Poller requests a status from every device on a fixed interval. The
// device sessions rely on this to notice a dead listener and restart it.
package bridge
