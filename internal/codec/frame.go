package codec

import "fmt"

// Sensor frame wire format (rover -> server, base64 inside the websocket
// envelope):
//
//	[0x13][len N][payload ...][checksum]
//
// The payload is a sequence of {packetId, value} entries. An unrecognized
// packet id poisons the whole frame: the decoder cannot know the entry's
// width, so everything after it is unparseable.
const sensorFrameHeader = 0x13

// Top-level packet ids the rovers send, with their payload widths.
var sensorPacketSizes = map[byte]int{
	100: SensorBlobBytes, // full group 100 block
	21:  1,               // charging state
	34:  1,               // charging sources
}

// DecodeSensorFrame decodes one OI sensor frame. The returned snapshot is
// complete or nil: short buffers, a bad header byte, an unknown packet id,
// a declared size overrunning the payload, or a checksum mismatch all fail
// the whole frame.
func DecodeSensorFrame(buf []byte) (*Sensors, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: sensor frame too small (%d bytes)", ErrProtocol, len(buf))
	}
	if buf[0] != sensorFrameHeader {
		return nil, fmt.Errorf("%w: bad sensor frame header 0x%02x", ErrProtocol, buf[0])
	}
	n := int(buf[1])
	if len(buf) < n+3 {
		return nil, fmt.Errorf("%w: sensor frame truncated", ErrProtocol)
	}
	if !frameValid(buf[:n+3]) {
		return nil, fmt.Errorf("%w: sensor frame checksum mismatch", ErrProtocol)
	}

	payload := buf[2 : 2+n]
	var (
		s          Sensors
		sawState   bool
		sawSources bool
	)
	for off := 0; off < len(payload); {
		id := payload[off]
		off++
		size, ok := sensorPacketSizes[id]
		if !ok || off+size > len(payload) {
			return nil, fmt.Errorf("%w: sensor packet id %d invalid or overruns payload", ErrProtocol, id)
		}
		seg := payload[off : off+size]
		off += size
		switch id {
		case 100:
			// group 100 carries its own charging fields and overrides
			// any standalone packet, earlier or later
			s = decodeGroup100(seg)
			sawState, sawSources = true, true
		case 21:
			if !sawState {
				s.ChargingState = ChargingState(seg[0])
				sawState = true
			}
		case 34:
			if !sawSources {
				s.ChargingSources = parseChargeSources(seg[0])
				sawSources = true
			}
		}
	}
	return &s, nil
}
