package protocol

import (
	"encoding/json"
	"fmt"
)

// Broadcast is the announcement a device sends on UDP 6666 while on the LAN
type Broadcast struct {
	GwID       string `json:"gwId"`
	IP         string `json:"ip"`
	Active     int    `json:"active"`
	Ability    int    `json:"ability"`
	Mode       int    `json:"mode"`
	Encrypt    bool   `json:"encrypt"`
	ProductKey string `json:"productKey"`
	Version    string `json:"version"`
}

// ParseBroadcast decodes a plaintext announcement frame.
// The payload is a flat JSON object so the status pattern does not apply.
func ParseBroadcast(chunk []byte) (*Broadcast, error) {
	payload, err := StripFrame(chunk)
	if err != nil {
		return nil, err
	}

	start := -1
	end := -1
	for i, b := range payload {
		if b == '{' && start < 0 {
			start = i
		}
		if b == '}' {
			end = i
		}
	}
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}

	var b Broadcast
	if err := json.Unmarshal(payload[start:end+1], &b); err != nil {
		return nil, fmt.Errorf("failed to parse broadcast: %w", err)
	}
	if b.GwID == "" {
		return nil, fmt.Errorf("broadcast has no gwId")
	}
	return &b, nil
}
