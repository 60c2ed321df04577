package objfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/vmerrors"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

// ReadFile opens and parses the object file at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %v: %w", path, err, vmerrors.ErrLFileNotFound)
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", path, err)
	}
	log.Debug(log.LoadMonitoring, "parsed object file", "path", path, "blocks", len(file.Blocks))
	return file, nil
}

// Parse reads an object file in a single pass. Every structural check is
// made while the fields are read, so a File returned without error is
// consistent: handler ranges and native ref slots lie inside their blocks.
func Parse(r io.Reader) (*File, error) {
	p := &parser{r: bufio.NewReader(r)}

	magic, err := p.u32("magic")
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("magic %#08x: %w", magic, vmerrors.ErrLBadMagic)
	}
	count, err := p.u32("block count")
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, vmerrors.ErrLNoBlocks
	}

	file := &File{}
	for i := uint32(0); i < count; i++ {
		b, err := p.block()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		file.Blocks = append(file.Blocks, b)
	}
	return file, nil
}

type parser struct {
	r   *bufio.Reader
	off int64
}

func (p *parser) truncated(what string) error {
	return fmt.Errorf("truncated %s at offset %d: %w", what, p.off, vmerrors.ErrLMalformedObject)
}

func (p *parser) u32(what string) (uint32, error) {
	var buf [4]byte
	n, err := io.ReadFull(p.r, buf[:])
	p.off += int64(n)
	if err != nil {
		return 0, p.truncated(what)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (p *parser) u64(what string) (uint64, error) {
	var buf [8]byte
	n, err := io.ReadFull(p.r, buf[:])
	p.off += int64(n)
	if err != nil {
		return 0, p.truncated(what)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// bytes reads n bytes without trusting n for the allocation size.
func (p *parser) bytes(what string, n uint32) ([]byte, error) {
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, p.r, int64(n))
	p.off += copied
	if err != nil {
		return nil, p.truncated(what)
	}
	return buf.Bytes(), nil
}

func (p *parser) name(what string) (string, error) {
	s, err := p.r.ReadSlice(0)
	p.off += int64(len(s))
	switch {
	case errors.Is(err, bufio.ErrBufferFull) || len(s) > MaxNameLen+1:
		return "", fmt.Errorf("%s at offset %d: %w", what, p.off, vmerrors.ErrLNameTooLong)
	case err != nil:
		return "", p.truncated(what)
	}
	return string(s[:len(s)-1]), nil
}

// names reads a count followed by that many NUL-terminated names.
func (p *parser) names(what string) ([]string, error) {
	n, err := p.u32(what + " count")
	if err != nil {
		return nil, err
	}
	var out []string
	for i := uint32(0); i < n; i++ {
		name, err := p.name(what + " name")
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// nativeRefs reads a count followed by (name, u32 offset) pairs. Each offset
// must address a whole instruction of a block of length bytes.
func (p *parser) nativeRefs(blockName string, length uint32) ([]block.NativeRef, error) {
	n, err := p.u32("native ref count")
	if err != nil {
		return nil, err
	}
	var out []block.NativeRef
	for i := uint32(0); i < n; i++ {
		var r block.NativeRef
		if r.Name, err = p.name("native ref name"); err != nil {
			return nil, err
		}
		if r.Offset, err = p.u32("native ref offset"); err != nil {
			return nil, err
		}
		if r.Offset%program.InstructionSize != 0 || uint64(r.Offset)+program.InstructionSize > uint64(length) {
			return nil, fmt.Errorf("%q native ref %q at %d: %w", blockName, r.Name, r.Offset, vmerrors.ErrLBadNativeRefSlot)
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *parser) block() (*Block, error) {
	b := &Block{}
	var err error
	if b.Name, err = p.name("block name"); err != nil {
		return nil, err
	}
	if b.Annots, err = p.u64("annotations"); err != nil {
		return nil, err
	}
	if b.FrameSize, err = p.u32("frame size"); err != nil {
		return nil, err
	}
	length, err := p.u32("length")
	if err != nil {
		return nil, err
	}
	if b.Content, err = p.bytes("content", length); err != nil {
		return nil, err
	}

	nh, err := p.u32("handler count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nh; i++ {
		var h block.Handler
		if h.Start, err = p.u32("handler start"); err != nil {
			return nil, err
		}
		if h.End, err = p.u32("handler end"); err != nil {
			return nil, err
		}
		if h.Target, err = p.u32("handler target"); err != nil {
			return nil, err
		}
		if h.Start > h.End || h.End >= length || uint64(h.Target)+program.InstructionSize > uint64(length) {
			return nil, fmt.Errorf("%q handler %d [%d,%d]->%d in %d bytes: %w",
				b.Name, i, h.Start, h.End, h.Target, length, vmerrors.ErrLBadHandlerRange)
		}
		b.Handlers = append(b.Handlers, h)
	}

	if b.OutSymbols, err = p.names("outsymbol"); err != nil {
		return nil, err
	}
	if b.NativeRefs, err = p.nativeRefs(b.Name, length); err != nil {
		return nil, err
	}

	auxLen, err := p.u32("aux length")
	if err != nil {
		return nil, err
	}
	if b.AuxData, err = p.bytes("aux data", auxLen); err != nil {
		return nil, err
	}
	return b, nil
}
