package codec

// Checksum8 sums buf modulo 256.
func Checksum8(buf []byte) byte {
	var sum byte
	for _, b := range buf {
		sum += b
	}
	return sum
}

// checksumByte returns the trailing byte that makes the whole frame sum to
// zero once appended.
func checksumByte(frame []byte) byte {
	return -Checksum8(frame)
}

// frameValid reports whether frame, including its trailing checksum byte,
// sums to zero.
func frameValid(frame []byte) bool {
	return Checksum8(frame) == 0
}
