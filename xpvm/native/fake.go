package native

import (
	"bytes"
	"io"

	"github.com/colorfulnotion/xpvm/xpvm/block"
)

// FakeEnv is an Env backed by a map of strings, for tests.
type FakeEnv struct {
	ID      uint64
	Strings map[uint64]string
	Out     bytes.Buffer
	next    uint64
}

func (f *FakeEnv) ProcessorID() uint64 { return f.ID }

func (f *FakeEnv) ReadString(h uint64) (string, block.Exception) {
	s, ok := f.Strings[h]
	if !ok {
		return "", block.ExcBadBlock
	}
	return s, block.ExcNone
}

func (f *FakeEnv) AllocString(s string) (uint64, block.Exception) {
	if f.Strings == nil {
		f.Strings = make(map[uint64]string)
	}
	f.next += 64
	f.Strings[f.next] = s
	return f.next, block.ExcNone
}

func (f *FakeEnv) Stdout() io.Writer { return &f.Out }
