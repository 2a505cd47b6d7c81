package vfs

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

const (
	grfMagic      = "Master of Magic"
	grfHeaderSize = 46
	grfVersion    = 0x200

	grfEntrySize = 17

	grfFlagFile      = 0x01
	grfFlagEncrypted = 0x02 // Mixed DES; unsupported
)

// GRF errors.
var (
	ErrInvalidGRF     = errors.New("invalid GRF archive")
	ErrEncryptedEntry = errors.New("encrypted GRF entries are not supported")
)

type grfHeader struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

type grfEntry struct {
	name             string
	compressedSize   uint32
	alignedSize      uint32
	uncompressedSize uint32
	flags            uint8
	offset           uint32
}

// GRF is a read-only GRF 0x200 archive. Lookups are case-insensitive and
// accept either slash direction. Reads go through ReadAt and may run
// concurrently.
type GRF struct {
	r       io.ReaderAt
	closer  io.Closer
	size    int64
	entries map[string]*grfEntry
}

// OpenGRF opens an archive on disk.
func OpenGRF(path string) (*GRF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	g, err := NewGRF(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	g.closer = f
	return g, nil
}

// NewGRF reads the file table of an archive held in r.
func NewGRF(r io.ReaderAt, size int64) (*GRF, error) {
	g := &GRF{
		r:       r,
		size:    size,
		entries: make(map[string]*grfEntry),
	}

	var h grfHeader
	if err := binary.Read(io.NewSectionReader(r, 0, size), binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(ErrInvalidGRF, "short header")
	}
	if string(h.Magic[:]) != grfMagic {
		return nil, errors.Wrap(ErrInvalidGRF, "bad magic")
	}
	if h.Version != grfVersion {
		return nil, errors.Wrapf(ErrInvalidGRF, "unsupported version 0x%x", h.Version)
	}
	if h.FileCount < h.Seed+7 {
		return nil, errors.Wrapf(ErrInvalidGRF, "file count %d below seed %d", h.FileCount, h.Seed)
	}

	if err := g.readTable(&h); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GRF) readTable(h *grfHeader) error {
	tableOffset := int64(h.TableOffset) + grfHeaderSize

	var sizes [8]byte
	if _, err := g.r.ReadAt(sizes[:], tableOffset); err != nil {
		return errors.Wrap(ErrInvalidGRF, "file table out of range")
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])
	if int64(compressedSize) > g.size-tableOffset-8 {
		return errors.Wrapf(ErrInvalidGRF, "file table size %d exceeds archive", compressedSize)
	}

	compressed := make([]byte, compressedSize)
	if _, err := g.r.ReadAt(compressed, tableOffset+8); err != nil {
		return errors.Wrap(err, "reading file table")
	}
	table, err := inflate(compressed, uncompressedSize)
	if err != nil {
		return errors.Wrap(err, "inflating file table")
	}

	fileCount := h.FileCount - h.Seed - 7
	offset := 0
	for i := uint32(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 {
			return errors.Wrapf(ErrInvalidGRF, "entry %d: unterminated name", i)
		}
		name := decodeName(table[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+grfEntrySize > len(table) {
			return errors.Wrapf(ErrInvalidGRF, "entry %d: truncated", i)
		}

		e := &grfEntry{
			name:             normalizeName(name),
			compressedSize:   binary.LittleEndian.Uint32(table[offset:]),
			alignedSize:      binary.LittleEndian.Uint32(table[offset+4:]),
			uncompressedSize: binary.LittleEndian.Uint32(table[offset+8:]),
			flags:            table[offset+12],
			offset:           binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += grfEntrySize

		if e.flags&grfFlagFile != 0 {
			g.entries[e.name] = e
		}
	}
	return nil
}

// inflate decompresses data, which must expand to exactly size bytes. The
// output grows with what the stream actually yields, so a bogus size in
// the archive cannot force a large allocation up front.
func inflate(data []byte, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, io.LimitReader(zr, int64(size)+1)); err != nil {
		return nil, err
	}
	if out.Len() != int(size) {
		return nil, errors.Wrapf(ErrInvalidGRF, "inflated to %d bytes, expected %d", out.Len(), size)
	}
	return out.Bytes(), nil
}

// decodeName converts an EUC-KR entry name to UTF-8. Names that fail to
// decode are kept as is.
func decodeName(raw []byte) string {
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// encodeName converts a UTF-8 name to EUC-KR for writing archive tables.
func encodeName(name string) []byte {
	out, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(name))
	if err != nil {
		return []byte(name)
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, `\`, "/"))
}

// IsFile reports whether the archive has name.
func (g *GRF) IsFile(name string) bool {
	_, ok := g.entries[normalizeName(name)]
	return ok
}

// Open returns the uncompressed contents of name.
func (g *GRF) Open(name string) (io.ReadCloser, error) {
	data, err := g.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadFile returns the uncompressed contents of name.
func (g *GRF) ReadFile(name string) ([]byte, error) {
	e, ok := g.entries[normalizeName(name)]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	if e.flags&grfFlagEncrypted != 0 {
		return nil, errors.Wrap(ErrEncryptedEntry, name)
	}

	start := int64(e.offset) + grfHeaderSize
	if e.compressedSize > e.alignedSize || start+int64(e.alignedSize) > g.size {
		return nil, errors.Wrapf(ErrInvalidGRF, "%s: entry out of range", name)
	}

	raw := make([]byte, e.alignedSize)
	if _, err := g.r.ReadAt(raw, start); err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}

	if e.compressedSize == e.uncompressedSize {
		return raw[:e.uncompressedSize], nil
	}
	data, err := inflate(raw[:e.compressedSize], e.uncompressedSize)
	if err != nil {
		return nil, errors.Wrapf(err, "inflating %s", name)
	}
	return data, nil
}

// List returns the sorted entry names.
func (g *GRF) List() []string {
	names := make([]string, 0, len(g.entries))
	for name := range g.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes the underlying file, if OpenGRF opened one.
func (g *GRF) Close() error {
	if g.closer == nil {
		return nil
	}
	err := g.closer.Close()
	g.closer = nil
	return err
}
