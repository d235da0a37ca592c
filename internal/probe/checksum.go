package probe

import "encoding/binary"

// Checksum calculates the Internet Checksum (RFC 1071) over data, summing
// it as big-endian 16-bit words.
func Checksum(data []byte) uint16 {
	return ChecksumOrder(binary.BigEndian, data)
}

// ChecksumOrder calculates the Internet Checksum summing data as 16-bit
// words in the given byte order. An odd trailing byte is padded with a zero
// byte to form the last word.
//
// The one's complement sum is byte-order independent up to a byte swap, so
// a checksum computed in one order and written back in the same order
// always produces the same bytes on the wire.
func ChecksumOrder(order binary.ByteOrder, data []byte) uint16 {
	return ^fold(sum(order, data))
}

// ValidateChecksum verifies that a packet's checksum is correct.
// Returns true if the checksum is valid (sum including checksum equals 0xFFFF).
func ValidateChecksum(data []byte) bool {
	return ValidateChecksumOrder(binary.BigEndian, data)
}

// ValidateChecksumOrder is ValidateChecksum for an explicit word order.
func ValidateChecksumOrder(order binary.ByteOrder, data []byte) bool {
	return fold(sum(order, data)) == 0xffff
}

func sum(order binary.ByteOrder, data []byte) uint32 {
	var s uint32

	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		s += uint32(order.Uint16(data[i : i+2]))
	}

	if len(data)%2 == 1 {
		s += uint32(order.Uint16([]byte{data[len(data)-1], 0}))
	}

	return s
}

// fold adds the carries back into the low 16 bits until the sum fits.
func fold(s uint32) uint16 {
	for s > 0xffff {
		s = (s >> 16) + (s & 0xffff)
	}
	return uint16(s)
}
