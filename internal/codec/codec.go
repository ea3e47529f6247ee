// Package codec implements the binary protocols the rovers speak: the OI
// sensor frames embedded in websocket messages, the UDP telemetry packet,
// and the UDP control packet.
//
// All three formats end in a single additive checksum byte chosen so that
// the sum of every byte in the frame, modulo 256, is zero. Decoding is
// all-or-nothing: any length, magic, or checksum failure rejects the whole
// frame and no partial result is returned.
package codec

import "errors"

// ErrProtocol wraps every decode failure in this package.
var ErrProtocol = errors.New("protocol error")

// Control packet constants.
const (
	ControlMagic      = 0xAA
	TelemetryMagic    = 0x55
	ProtocolVersion   = 1
	MaxSpeedMmps      = 500
	ControlPacketSize = 12
)

// Action bits carried in the control packet.
const (
	ActionSeekDock = 0x01
	ActionPlaySong = 0x02
	ActionLoadSong = 0x04
	ActionEnableOI = 0x08
)

// OI mode requests carried in the control packet.
const (
	OIModeNoChange = 0
	OIModePassive  = 1
	OIModeSafe     = 2
	OIModeFull     = 3
)

// Telemetry packet layout.
const (
	TelemetryHeaderSize  = 32
	TelemetryTrailerSize = 9
	SensorBlobBytes      = 80
	MaxRobotIDLen        = 16
)
