package codec

import (
	"encoding/binary"
	"fmt"
)

// ControlState is the drive state encoded into one UDP control packet.
type ControlState struct {
	Seq       uint16
	LeftMmps  int16
	RightMmps int16
	Mode      uint8
	Actions   uint8
	SongSlot  uint8
}

// BuildControlPacket encodes state into the 12-byte control packet:
//
//	[0xAA][ver][seq u16][left i16][right i16][mode][actions][slot][checksum]
//
// Multi-byte fields are little-endian. The output depends only on state,
// so identical inputs always produce identical bytes.
func BuildControlPacket(state ControlState) []byte {
	buf := make([]byte, ControlPacketSize)
	buf[0] = ControlMagic
	buf[1] = ProtocolVersion
	binary.LittleEndian.PutUint16(buf[2:4], state.Seq)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(state.LeftMmps))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(state.RightMmps))
	buf[8] = state.Mode
	buf[9] = state.Actions
	buf[10] = state.SongSlot
	buf[11] = checksumByte(buf[:11])
	return buf
}

// DecodeControlPacket is the inverse of BuildControlPacket.
func DecodeControlPacket(buf []byte) (ControlState, error) {
	if len(buf) != ControlPacketSize {
		return ControlState{}, fmt.Errorf("%w: control packet must be %d bytes, got %d", ErrProtocol, ControlPacketSize, len(buf))
	}
	if !frameValid(buf) {
		return ControlState{}, fmt.Errorf("%w: control checksum mismatch", ErrProtocol)
	}
	if buf[0] != ControlMagic {
		return ControlState{}, fmt.Errorf("%w: unexpected control magic 0x%02x", ErrProtocol, buf[0])
	}
	if buf[1] != ProtocolVersion {
		return ControlState{}, fmt.Errorf("%w: unexpected control version %d", ErrProtocol, buf[1])
	}
	return ControlState{
		Seq:       binary.LittleEndian.Uint16(buf[2:4]),
		LeftMmps:  int16(binary.LittleEndian.Uint16(buf[4:6])),
		RightMmps: int16(binary.LittleEndian.Uint16(buf[6:8])),
		Mode:      buf[8],
		Actions:   buf[9],
		SongSlot:  buf[10],
	}, nil
}
