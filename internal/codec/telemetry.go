package codec

import (
	"encoding/binary"
	"fmt"
)

// TelemetryHeader is the fixed 32-byte telemetry packet header.
// Multi-byte fields are little-endian on the wire.
type TelemetryHeader struct {
	Magic            uint8  `json:"magic"`
	Version          uint8  `json:"version"`
	Seq              uint16 `json:"seq"`
	UptimeMs         uint32 `json:"uptimeMs"`
	LastControlAgeMs uint32 `json:"lastControlAgeMs"`
	WifiRssiDbm      int8   `json:"wifiRssiDbm"`
	StatusBits       uint8  `json:"statusBits"`
	SensorBytes      uint8  `json:"sensorBytes"`
	RobotIDLength    uint8  `json:"robotIdLength"`
	RobotID          string `json:"robotId"`
}

// TelemetryTrailer is the 9-byte telemetry packet trailer (the checksum
// byte is consumed during validation and not surfaced).
type TelemetryTrailer struct {
	AppliedLeftMmps       int16  `json:"appliedLeftMmps"`
	AppliedRightMmps      int16  `json:"appliedRightMmps"`
	LastControlSeq        uint16 `json:"lastControlSeq"`
	DroppedControlPackets uint16 `json:"droppedControlPackets"`
}

// Telemetry is one decoded UDP telemetry packet.
type Telemetry struct {
	Header  TelemetryHeader  `json:"header"`
	Sensors *Sensors         `json:"sensors"`
	Trailer TelemetryTrailer `json:"trailer"`
}

/// DecodeTelemetry decodes one UDP telemetry packet:
//
//	[32-byte header][sensor blob, <= 80 bytes][9-byte trailer]
//
// The sensor blob, when present, is the OI group 100 block.
func DecodeTelemetry(buf []byte) (*Telemetry, error) {
	if len(buf) < TelemetryHeaderSize+TelemetryTrailerSize {
		return nil, fmt.Errorf("%w: telemetry frame too small (%d bytes)", ErrProtocol, len(buf))
	}
	if !frameValid(buf) {
		return nil, fmt.Errorf("%w: telemetry checksum mismatch", ErrProtocol)
	}

	idLen := int(buf[15])
	if idLen > MaxRobotIDLen {
		idLen = MaxRobotIDLen
	}
	header := TelemetryHeader{
		Magic:            buf[0],
		Version:          buf[1],
		Seq:              binary.LittleEndian.Uint16(buf[2:4]),
		UptimeMs:         binary.LittleEndian.Uint32(buf[4:8]),
		LastControlAgeMs: binary.LittleEndian.Uint32(buf[8:12]),
		WifiRssiDbm:      int8(buf[12]),
		StatusBits:       buf[13],
		SensorBytes:      buf[14],
		RobotIDLength:    uint8(idLen),
		RobotID:          string(buf[16 : 16+idLen]),
	}
	if header.Magic != TelemetryMagic {
		return nil, fmt.Errorf("%w: unexpected telemetry magic 0x%02x", ErrProtocol, header.Magic)
	}
	if header.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: unexpected telemetry version %d", ErrProtocol, header.Version)
	}

	trailerOffset := len(buf) - TelemetryTrailerSize
	if TelemetryHeaderSize+int(header.SensorBytes) > trailerOffset {
		return nil, fmt.Errorf("%w: sensor payload overruns trailer", ErrProtocol)
	}

	var sensors *Sensors
	switch header.SensorBytes {
	case 0:
		// status-only packet
	case SensorBlobBytes:
		s := decodeGroup100(buf[TelemetryHeaderSize : TelemetryHeaderSize+SensorBlobBytes])
		sensors = &s
	default:
		return nil, fmt.Errorf("%w: unexpected sensor blob size %d", ErrProtocol, header.SensorBytes)
	}

	return &Telemetry{
		Header:  header,
		Sensors: sensors,
		Trailer: TelemetryTrailer{
			AppliedLeftMmps:       int16(binary.LittleEndian.Uint16(buf[trailerOffset : trailerOffset+2])),
			AppliedRightMmps:      int16(binary.LittleEndian.Uint16(buf[trailerOffset+2 : trailerOffset+4])),
			LastControlSeq:        binary.LittleEndian.Uint16(buf[trailerOffset+4 : trailerOffset+6]),
			DroppedControlPackets: binary.LittleEndian.Uint16(buf[trailerOffset+6 : trailerOffset+8]),
		},
	}, nil
}
