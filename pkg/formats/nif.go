// NIF record file parser.
//
// A NIF file is a flat list of typed records. Records reference each other
// by index (-1 means "none"); record 0 is the scene root.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// NIF format errors.
var (
	ErrInvalidNIFMagic       = errors.New("invalid NIF magic: expected 'NIFL'")
	ErrUnsupportedNIFVersion = errors.New("unsupported NIF version")
	ErrTruncatedNIFData      = errors.New("truncated NIF data")
	ErrInvalidRecordCount    = errors.New("invalid NIF record count")
	ErrUnknownRecord         = errors.New("unknown NIF record type")
	ErrStringTooLong         = errors.New("NIF string too long")
)

const (
	nifMagic = "NIFL"

	// NIFVersion is the only layout revision understood by this package.
	NIFVersion uint32 = 1

	maxRecords   = 1 << 16
	maxStringLen = 4096
	maxChildren  = 1 << 14
)

// Record type names as stored on disk.
const (
	RecordNode          = "NiNode"
	RecordCollisionNode = "RootCollisionNode"
	RecordTriShape      = "NiTriShape"
	RecordTriShapeData  = "NiTriShapeData"
	RecordStringExtra   = "NiStringExtraData"
)

// NoRef marks an empty record reference.
const NoRef int32 = -1

// NIFRecord is any record in a NIF file.
type NIFRecord interface {
	RecordType() string
}

// NIFBounds is the optional bounding volume attached to a node.
type NIFBounds struct {
	Center      [3]float32
	Rotation    [9]float32 // Row-major
	HalfExtents [3]float32
}

// NIFNodeBase holds the fields shared by every node record.
type NIFNodeBase struct {
	Name        string
	Extra       int32      // First NiStringExtraData in the chain, or NoRef
	Flags       uint16     // Hidden/collide bits
	Translation [3]float32 // Local position
	Rotation    [9]float32 // Row-major 3x3
	Velocity    [3]float32
	Scale       float32
	Bounds      *NIFBounds // nil if the node has no bounding volume
}

// Base returns the shared node fields.
func (n *NIFNodeBase) Base() *NIFNodeBase { return n }

// NIFNodeRecord is implemented by every record that is a scene node.
type NIFNodeRecord interface {
	NIFRecord
	Base() *NIFNodeBase
}

// NIFNode is a grouping node with an ordered child list.
type NIFNode struct {
	NIFNodeBase
	Children []int32 // NoRef entries are empty slots
}

func (*NIFNode) RecordType() string { return RecordNode }

// NIFCollisionNode marks its subtree as authored collision geometry.
type NIFCollisionNode struct {
	NIFNode
}

func (*NIFCollisionNode) RecordType() string { return RecordCollisionNode }

// NIFTriShape is a triangle mesh leaf.
type NIFTriShape struct {
	NIFNodeBase
	Data int32 // NiTriShapeData record
}

func (*NIFTriShape) RecordType() string { return RecordTriShape }

// NIFTriShapeData holds mesh geometry.
type NIFTriShapeData struct {
	Vertices  [][3]float32
	Triangles [][3]uint16 // Indices into Vertices
}

func (*NIFTriShapeData) RecordType() string { return RecordTriShapeData }

// NIFStringExtra is a string attached to a node, chained through Next.
type NIFStringExtra struct {
	Next  int32
	Value string
}

func (*NIFStringExtra) RecordType() string { return RecordStringExtra }

// NIF represents a parsed NIF file.
type NIF struct {
	Version uint32
	Records []NIFRecord
}

// ParseNIF parses NIF data from a byte slice.
func ParseNIF(data []byte) (*NIF, error) {
	if len(data) < 12 {
		return nil, ErrTruncatedNIFData
	}
	if string(data[:4]) != nifMagic {
		return nil, ErrInvalidNIFMagic
	}

	r := &nifReader{r: bytes.NewReader(data[4:])}

	nif := &NIF{}
	nif.Version = r.u32()
	if nif.Version != NIFVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedNIFVersion, nif.Version)
	}

	count := r.u32()
	if r.err != nil {
		return nil, r.err
	}
	if count > maxRecords {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecordCount, count)
	}

	nif.Records = make([]NIFRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		rec, err := r.record()
		if err != nil {
			return nil, fmt.Errorf("parsing record %d: %w", i, err)
		}
		nif.Records = append(nif.Records, rec)
	}

	return nif, nil
}

// DecodeNIF reads a whole NIF stream and parses it.
func DecodeNIF(src io.Reader) (*NIF, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading NIF stream: %w", err)
	}
	return ParseNIF(data)
}

// ParseNIFFile parses a NIF file from disk.
func ParseNIFFile(path string) (*NIF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading NIF file: %w", err)
	}
	return ParseNIF(data)
}

// nifReader wraps a reader and keeps the first error it sees, so a record
// can be decoded field by field and checked once.
type nifReader struct {
	r   *bytes.Reader
	err error
}

func (nr *nifReader) read(v any) {
	if nr.err != nil {
		return
	}
	if err := binary.Read(nr.r, binary.LittleEndian, v); err != nil {
		nr.err = ErrTruncatedNIFData
	}
}

func (nr *nifReader) u8() uint8 {
	var v uint8
	nr.read(&v)
	return v
}

func (nr *nifReader) u16() uint16 {
	var v uint16
	nr.read(&v)
	return v
}

func (nr *nifReader) u32() uint32 {
	var v uint32
	nr.read(&v)
	return v
}

func (nr *nifReader) i32() int32 {
	var v int32
	nr.read(&v)
	return v
}

// string reads a u32 length-prefixed string.
func (nr *nifReader) string() string {
	n := nr.u32()
	if nr.err != nil {
		return ""
	}
	if n > maxStringLen {
		nr.err = fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
		return ""
	}
	if int(n) > nr.r.Len() {
		nr.err = ErrTruncatedNIFData
		return ""
	}
	buf := make([]byte, n)
	nr.read(buf)
	return string(buf)
}

func (nr *nifReader) record() (NIFRecord, error) {
	typ := nr.string()
	if nr.err != nil {
		return nil, nr.err
	}

	var rec NIFRecord
	switch typ {
	case RecordNode:
		n := &NIFNode{}
		nr.nodeBase(&n.NIFNodeBase)
		n.Children = nr.children()
		rec = n
	case RecordCollisionNode:
		n := &NIFCollisionNode{}
		nr.nodeBase(&n.NIFNodeBase)
		n.Children = nr.children()
		rec = n
	case RecordTriShape:
		n := &NIFTriShape{}
		nr.nodeBase(&n.NIFNodeBase)
		n.Data = nr.i32()
		rec = n
	case RecordTriShapeData:
		rec = nr.triShapeData()
	case RecordStringExtra:
		e := &NIFStringExtra{}
		e.Next = nr.i32()
		e.Value = nr.string()
		rec = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, typ)
	}

	if nr.err != nil {
		return nil, fmt.Errorf("%s: %w", typ, nr.err)
	}
	return rec, nil
}

func (nr *nifReader) nodeBase(n *NIFNodeBase) {
	n.Name = nr.string()
	n.Extra = nr.i32()
	n.Flags = nr.u16()
	nr.read(&n.Translation)
	nr.read(&n.Rotation)
	nr.read(&n.Velocity)
	nr.read(&n.Scale)

	if nr.u8() != 0 {
		b := &NIFBounds{}
		nr.read(&b.Center)
		nr.read(&b.Rotation)
		nr.read(&b.HalfExtents)
		n.Bounds = b
	}
}

func (nr *nifReader) children() []int32 {
	count := nr.u32()
	if nr.err != nil {
		return nil
	}
	if count > maxChildren || int(count)*4 > nr.r.Len() {
		nr.err = ErrTruncatedNIFData
		return nil
	}
	children := make([]int32, count)
	nr.read(children)
	return children
}

func (nr *nifReader) triShapeData() *NIFTriShapeData {
	d := &NIFTriShapeData{}

	vertexCount := int(nr.u16())
	if nr.err == nil && vertexCount*12 > nr.r.Len() {
		nr.err = ErrTruncatedNIFData
	}
	if nr.err == nil && vertexCount > 0 {
		d.Vertices = make([][3]float32, vertexCount)
		nr.read(d.Vertices)
	}

	triangleCount := int(nr.u16())
	if nr.err == nil && triangleCount*6 > nr.r.Len() {
		nr.err = ErrTruncatedNIFData
	}
	if nr.err == nil && triangleCount > 0 {
		d.Triangles = make([][3]uint16, triangleCount)
		nr.read(d.Triangles)
	}

	return d
}

// Encode writes the file in the same layout ParseNIF reads.
func (nif *NIF) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(nifMagic)

	version := nif.Version
	if version == 0 {
		version = NIFVersion
	}
	write(&buf, version)
	write(&buf, uint32(len(nif.Records)))

	for i, rec := range nif.Records {
		if err := encodeRecord(&buf, rec); err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// write appends v to a bytes.Buffer; writes into a Buffer cannot fail.
func write(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	write(buf, uint32(len(s)))
	buf.WriteString(s)
	return nil
}

func encodeRecord(buf *bytes.Buffer, rec NIFRecord) error {
	if err := writeString(buf, rec.RecordType()); err != nil {
		return err
	}

	switch r := rec.(type) {
	case *NIFNode:
		if err := encodeNodeBase(buf, &r.NIFNodeBase); err != nil {
			return err
		}
		write(buf, uint32(len(r.Children)))
		write(buf, r.Children)
	case *NIFCollisionNode:
		if err := encodeNodeBase(buf, &r.NIFNodeBase); err != nil {
			return err
		}
		write(buf, uint32(len(r.Children)))
		write(buf, r.Children)
	case *NIFTriShape:
		if err := encodeNodeBase(buf, &r.NIFNodeBase); err != nil {
			return err
		}
		write(buf, r.Data)
	case *NIFTriShapeData:
		if len(r.Vertices) > 0xFFFF || len(r.Triangles) > 0xFFFF {
			return fmt.Errorf("tri-shape data too large: %d vertices, %d triangles", len(r.Vertices), len(r.Triangles))
		}
		write(buf, uint16(len(r.Vertices)))
		write(buf, r.Vertices)
		write(buf, uint16(len(r.Triangles)))
		write(buf, r.Triangles)
	case *NIFStringExtra:
		write(buf, r.Next)
		return writeString(buf, r.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecord, rec.RecordType())
	}
	return nil
}

func encodeNodeBase(buf *bytes.Buffer, n *NIFNodeBase) error {
	if err := writeString(buf, n.Name); err != nil {
		return err
	}
	write(buf, n.Extra)
	write(buf, n.Flags)
	write(buf, n.Translation)
	write(buf, n.Rotation)
	write(buf, n.Velocity)
	write(buf, n.Scale)
	if n.Bounds == nil {
		write(buf, uint8(0))
		return nil
	}
	write(buf, uint8(1))
	write(buf, n.Bounds.Center)
	write(buf, n.Bounds.Rotation)
	write(buf, n.Bounds.HalfExtents)
	return nil
}

// Record returns the record at index i, or nil for NoRef and out-of-range
// indices.
func (nif *NIF) Record(i int32) NIFRecord {
	if i < 0 || int(i) >= len(nif.Records) {
		return nil
	}
	return nif.Records[i]
}

// RecordTypeCount pairs a record type with how often it occurs.
type RecordTypeCount struct {
	Type  string
	Count int
}

// CountByType returns record counts sorted by descending count.
func (nif *NIF) CountByType() []RecordTypeCount {
	counts := make(map[string]int)
	for _, rec := range nif.Records {
		counts[rec.RecordType()]++
	}

	stats := make([]RecordTypeCount, 0, len(counts))
	for typ, n := range counts {
		stats = append(stats, RecordTypeCount{typ, n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Type < stats[j].Type
	})
	return stats
}

// GetTotalVertexCount returns the number of vertices across all tri-shape data.
func (nif *NIF) GetTotalVertexCount() int {
	total := 0
	for _, rec := range nif.Records {
		if d, ok := rec.(*NIFTriShapeData); ok {
			total += len(d.Vertices)
		}
	}
	return total
}

// GetTotalTriangleCount returns the number of triangles across all tri-shape data.
func (nif *NIF) GetTotalTriangleCount() int {
	total := 0
	for _, rec := range nif.Records {
		if d, ok := rec.(*NIFTriShapeData); ok {
			total += len(d.Triangles)
		}
	}
	return total
}
