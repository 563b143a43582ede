package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cmunell/featurespace/codec"
	"github.com/cmunell/featurespace/internal/hash"
)

// Magic identifies a featurespace document.
const Magic = "FSDC"

// Version is the current document format version.
const Version uint8 = 1

// Encode writes doc to w, compressing the section table with comp
// (codec.None if nil).
func Encode(w io.Writer, doc *Document, comp codec.Compression) error {
	if comp == nil {
		comp = codec.None
	}
	table, err := sectionTable(doc)
	if err != nil {
		return err
	}
	body, err := comp.Compress(table)
	if err != nil {
		return fmt.Errorf("persistence: compress: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	if err := writeName(&buf, doc.Codec().Name()); err != nil {
		return err
	}
	if err := writeName(&buf, comp.Name()); err != nil {
		return err
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(body)))
	buf.Write(body)

	_, err = w.Write(hash.AppendFooter(buf.Bytes()))
	return err
}

// Marshal returns the encoded form of doc.
func Marshal(doc *Document, comp codec.Compression) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, comp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a document written by Encode.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Unmarshal parses an encoded document.
func Unmarshal(data []byte) (*Document, error) {
	const minSize = len(Magic) + 1 + 1 + 1 + 8 + hash.FooterSize
	if len(data) < minSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	framed, want, got, _ := hash.SplitFooter(data)
	if want != got {
		return nil, &ChecksumMismatchError{Expected: want, Actual: got}
	}

	r := bytes.NewReader(framed[len(Magic):])
	version, _ := r.ReadByte()
	if version == 0 || version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	codecName, err := readName(r)
	if err != nil {
		return nil, err
	}
	compName, err := readName(r)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}
	comp, ok := codec.CompressionByName(compName)
	if !ok {
		return nil, fmt.Errorf("%w: compression %q", ErrUnknownCodec, compName)
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: body length", ErrCorrupt)
	}
	if n != uint64(r.Len()) {
		return nil, fmt.Errorf("%w: body length %d, have %d", ErrCorrupt, n, r.Len())
	}
	body := make([]byte, n)
	_, _ = io.ReadFull(r, body)

	table, err := comp.Decompress(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	doc := NewDocument(c)
	if err := readSectionTable(table, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func writeName(buf *bytes.Buffer, name string) error {
	if len(name) > math.MaxUint8 {
		return fmt.Errorf("persistence: name %q too long", name)
	}
	buf.WriteByte(uint8(len(name)))
	buf.WriteString(name)
	return nil
}

func readName(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("%w: name length", ErrCorrupt)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: name", ErrCorrupt)
	}
	return string(b), nil
}

func sectionTable(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	names := doc.Sections()
	if uint64(len(names)) > math.MaxUint32 {
		return nil, fmt.Errorf("persistence: %d sections exceed the section table", len(names))
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(names)))
	for _, name := range names {
		data, _ := doc.Raw(name)
		if len(name) > math.MaxUint16 {
			return nil, fmt.Errorf("persistence: section name of %d bytes too long", len(name))
		}
		if uint64(len(data)) > math.MaxUint32 {
			return nil, fmt.Errorf("persistence: section %q of %d bytes too large", name, len(data))
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func readSectionTable(table []byte, doc *Document) error {
	r := bytes.NewReader(table)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: section count", ErrCorrupt)
	}
	for i := uint32(0); i < count; i++ {
		var nl uint16
		if err := binary.Read(r, binary.LittleEndian, &nl); err != nil {
			return fmt.Errorf("%w: section %d", ErrCorrupt, i)
		}
		name := make([]byte, nl)
		if _, err := io.ReadFull(r, name); err != nil {
			return fmt.Errorf("%w: section %d name", ErrCorrupt, i)
		}
		var dl uint32
		if err := binary.Read(r, binary.LittleEndian, &dl); err != nil {
			return fmt.Errorf("%w: section %q", ErrCorrupt, name)
		}
		if int64(dl) > int64(r.Len()) {
			return fmt.Errorf("%w: section %q truncated", ErrCorrupt, name)
		}
		data := make([]byte, dl)
		_, _ = io.ReadFull(r, data)
		doc.sections[string(name)] = data
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return nil
}
