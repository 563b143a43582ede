// Package persistence stores trained models as self-describing documents.
//
// A Document is a set of named sections, each encoded with the document's
// codec. An absent section means the corresponding component is unfit; it is
// never an error at this layer.
//
// # Wire format
//
//	magic    [4]byte  "FSDC"
//	version  uint8
//	codec    uint8 length + name
//	compress uint8 length + name
//	length   uint64   compressed body length
//	body     compressed section table
//	crc      uint32   CRC32C of everything above
//
// The section table is a uint32 count followed by, per section, a uint16
// name length, the name, a uint32 data length and the data. All integers are
// little-endian.
package persistence
