package hash

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// FooterSize is the size of a checksum footer.
const FooterSize = 4

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// AppendFooter appends the little-endian CRC32C of buf to buf.
func AppendFooter(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, CRC32C(buf))
}

// SplitFooter splits data written by AppendFooter into the checksummed
// payload, the stored checksum and the checksum of the payload. ok is false
// if data is too short to hold a footer.
func SplitFooter(data []byte) (payload []byte, stored, actual uint32, ok bool) {
	if len(data) < FooterSize {
		return nil, 0, 0, false
	}
	payload = data[:len(data)-FooterSize]
	stored = binary.LittleEndian.Uint32(data[len(data)-FooterSize:])
	return payload, stored, CRC32C(payload), true
}

// Base64 returns the CRC32C of data as base64 of its big-endian bytes, the
// form object stores use in checksum headers.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(binary.BigEndian.AppendUint32(nil, CRC32C(data)))
}
