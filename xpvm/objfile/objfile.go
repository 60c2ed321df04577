// Package objfile reads and writes XPVM object files.
//
// Layout, all integers big-endian:
//
//	magic u32 (0x31303636) | block count u32 | blocks...
//
// and per block:
//
//	name (NUL-terminated, at most 255 bytes) | annots u64 | frame size u32 |
//	length u32 | content | handler count u32 | (start, end, target u32)... |
//	outsymbol count u32 | (name, offset u32)... | native ref count u32 |
//	(name, offset u32)... | aux length u32 | aux bytes
package objfile

import (
	"github.com/colorfulnotion/xpvm/xpvm/block"
)

const (
	Magic      uint32 = 0x31303636
	MaxNameLen        = 255
)

// Block is one block record as stored in the file.
type Block struct {
	Name       string            `json:"name"`
	Annots     uint64            `json:"annots"`
	FrameSize  uint32            `json:"frame_size"`
	Content    []byte            `json:"-"`
	Handlers   []block.Handler   `json:"handlers,omitempty"`
	OutSymbols []string          `json:"out_symbols,omitempty"`
	NativeRefs []block.NativeRef `json:"native_refs,omitempty"`
	AuxData    []byte            `json:"-"`
}

// File is a parsed object file. Blocks[0] is the program entry point.
type File struct {
	Blocks []*Block
}
