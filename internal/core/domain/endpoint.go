package domain

import (
	"fmt"
	"strings"
)

// EndpointType is the kind of audio route an Endpoint represents.
type EndpointType int

const (
	EndpointUnknown EndpointType = iota
	EndpointEarpiece
	EndpointSpeaker
	EndpointBluetooth
	EndpointWiredHeadset
	EndpointStreaming
)

func (t EndpointType) String() string {
	switch t {
	case EndpointUnknown:
		return "unknown"
	case EndpointEarpiece:
		return "earpiece"
	case EndpointSpeaker:
		return "speaker"
	case EndpointBluetooth:
		return "bluetooth"
	case EndpointWiredHeadset:
		return "wired_headset"
	case EndpointStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

func ParseEndpointType(s string) EndpointType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "earpiece":
		return EndpointEarpiece
	case "speaker":
		return EndpointSpeaker
	case "bluetooth":
		return EndpointBluetooth
	case "wired_headset", "headset":
		return EndpointWiredHeadset
	case "streaming":
		return EndpointStreaming
	default:
		return EndpointUnknown
	}
}

// Endpoint is an audio route the call can be directed to.
type Endpoint struct {
	ID   EndpointID
	Name string
	Type EndpointType
}
