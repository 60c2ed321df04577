package trace

import "github.com/colorfulnotion/xpvm/common"

// Step is one executed instruction as seen after it retired.
type Step struct {
	Proc        uint64 `json:"proc"`
	Step        uint64 `json:"step"`
	Block       uint64 `json:"cib"`
	Offset      uint32 `json:"cio"`
	Opcode      uint8  `json:"opcode"`
	OpcodeStr   string `json:"opcodeStr,omitempty"`
	Instruction string `json:"instruction,omitempty"`

	DstReg   *uint8  `json:"dstReg,omitempty"`
	DstValue *uint64 `json:"dstValue,omitempty"`

	ChangedMemoryBlock  *uint64 `json:"changedMemoryBlock,omitempty"`
	ChangedMemoryOffset *uint64 `json:"changedMemoryOffset,omitempty"`
	ChangedMemoryBytes  []byte  `json:"changedMemoryBytes,omitempty"` // hashed when longer than 32 bytes

	Exception string `json:"exception,omitempty"`
}

func (s *Step) SetDst(reg uint8, value uint64) {
	s.DstReg = &reg
	s.DstValue = &value
}

func (s *Step) SetChangedMemory(blk, off uint64, bytes []byte) {
	s.ChangedMemoryBlock = &blk
	s.ChangedMemoryOffset = &off
	if len(bytes) == 0 {
		s.ChangedMemoryBytes = nil
		return
	}
	if len(bytes) > 32 {
		s.ChangedMemoryBytes = common.Blake2Hash(bytes).Bytes()
		return
	}
	s.ChangedMemoryBytes = append([]byte(nil), bytes...)
}

// Sink receives steps from running processors. Implementations must be safe
// for concurrent use.
type Sink interface {
	WriteStep(step *Step) error
	Close() error
}

// Multi fans a step out to several sinks. The first error wins.
type Multi []Sink

func (m Multi) WriteStep(step *Step) error {
	var first error
	for _, s := range m {
		if err := s.WriteStep(step); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
