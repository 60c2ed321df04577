package objfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/colorfulnotion/xpvm/vmerrors"
)

// Bytes encodes the file in the object file layout.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo implements io.WriterTo.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Blocks)))
	for i, b := range f.Blocks {
		var err error
		if buf, err = b.append(buf); err != nil {
			return 0, fmt.Errorf("block %d: %w", i, err)
		}
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// WriteFile encodes the file to path.
func (f *File) WriteFile(path string) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func appendName(buf []byte, name string) ([]byte, error) {
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("name %q: %w", name, vmerrors.ErrLNameTooLong)
	}
	buf = append(buf, name...)
	return append(buf, 0), nil
}

func (b *Block) append(buf []byte) ([]byte, error) {
	var err error
	if buf, err = appendName(buf, b.Name); err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint64(buf, b.Annots)
	buf = binary.BigEndian.AppendUint32(buf, b.FrameSize)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.Content)))
	buf = append(buf, b.Content...)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.Handlers)))
	for _, h := range b.Handlers {
		buf = binary.BigEndian.AppendUint32(buf, h.Start)
		buf = binary.BigEndian.AppendUint32(buf, h.End)
		buf = binary.BigEndian.AppendUint32(buf, h.Target)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.OutSymbols)))
	for _, name := range b.OutSymbols {
		if buf, err = appendName(buf, name); err != nil {
			return nil, err
		}
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.NativeRefs)))
	for _, r := range b.NativeRefs {
		if buf, err = appendName(buf, r.Name); err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, r.Offset)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b.AuxData)))
	return append(buf, b.AuxData...), nil
}
