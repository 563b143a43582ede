// Package hash provides the CRC32-Castagnoli checksums that protect persisted
// documents and uploaded blobs.
//
// Documents end in a 4-byte little-endian footer over every preceding byte:
//
//	buf = hash.AppendFooter(buf)
//	payload, stored, actual, ok := hash.SplitFooter(buf)
//
// Object stores expect the same checksum big-endian and base64 encoded; see
// Base64.
package hash
