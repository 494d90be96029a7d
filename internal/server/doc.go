// Package server exposes a bridge hub over HTTP and WebSocket.
//
// # Endpoints
//
//	GET  /api/devices                 current state of every device
//	GET  /api/devices/{id}            one device, by id or name
//	POST /api/devices/{id}/commands   run a command, body {"action":"on","params":{...}}
//	GET  /api/version                 build version
//	GET  /ws                          WebSocket stream
//
// # WebSocket Messages
//
// Every message is a JSON object with a "type" field. On connect the server
// sends a "snapshot" message listing all devices, then a "state" message
// whenever a device reports a change. Clients send "command" messages and
// receive a "result" for each:
//
//	-> {"type":"command","command":{"id":"1","device":"Desk Lamp","action":"brightness","params":{"brightness":128}}}
//	<- {"type":"result","result":{"id":"1","device":"bf12...","action":"brightness","ok":true,"state":{...}}}
//	<- {"type":"state","device":{"id":"bf12...","on":true,"attributes":{"brightness":128}}}
//
// A successful result only means the command was sent; the device's new
// state arrives later as a "state" message.
//
// The server pings clients every 54 seconds and drops clients that do not
// answer within 60 seconds.
//
// # Advertisement
//
// With Config.Advertise set, the server registers itself on mDNS as
// "_tuyalocal._tcp" so clients can find it with discovery.BrowseBridges.
package server
