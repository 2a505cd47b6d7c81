package vfs

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// WriteGRF writes files as an unencrypted GRF 0x200 archive. Entries are
// zlib compressed unless that would not make them smaller.
func WriteGRF(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var body, table bytes.Buffer
	for _, name := range names {
		data := files[name]
		stored, err := deflate(data)
		if err != nil {
			return errors.Wrapf(err, "compressing %s", name)
		}
		if len(stored) >= len(data) {
			stored = data
		}

		var entry [grfEntrySize]byte
		binary.LittleEndian.PutUint32(entry[0:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(entry[4:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(entry[8:], uint32(len(data)))
		entry[12] = grfFlagFile
		binary.LittleEndian.PutUint32(entry[13:], uint32(body.Len()))

		table.Write(encodeName(name))
		table.WriteByte(0)
		table.Write(entry[:])
		body.Write(stored)
	}

	compressedTable, err := deflate(table.Bytes())
	if err != nil {
		return errors.Wrap(err, "compressing file table")
	}

	h := grfHeader{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(names)) + 7,
		Version:     grfVersion,
	}
	copy(h.Magic[:], grfMagic)

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	sizes := make([]byte, 8)
	binary.LittleEndian.PutUint32(sizes[0:], uint32(len(compressedTable)))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := w.Write(sizes); err != nil {
		return err
	}
	_, err = w.Write(compressedTable)
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
