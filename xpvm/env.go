package xpvm

import (
	"bytes"
	"io"

	"github.com/colorfulnotion/xpvm/xpvm/block"
)

// Processor is the native.Env handed to native functions.

func (p *Processor) ProcessorID() uint64 { return p.id }

func (p *Processor) Stdout() io.Writer { return p.m.Stdout }

func (p *Processor) ReadString(h uint64) (string, block.Exception) {
	b, ok := p.lookup(h)
	if !ok {
		return "", block.ExcIllegalAddress
	}
	if exc := b.CheckRead(p.id); exc != block.ExcNone {
		return "", exc
	}
	data := b.Data()
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), block.ExcNone
}

func (p *Processor) AllocString(s string) (uint64, block.Exception) {
	b, exc := p.alloc(block.Spec{Size: uint64(len(s)) + 1, Owner: p.id})
	if exc != block.ExcNone {
		return 0, exc
	}
	copy(b.Data(), s)
	if p.tr != nil {
		p.tr.SetChangedMemory(uint64(b.Handle()), 0, b.Data())
	}
	return uint64(b.Handle()), block.ExcNone
}
