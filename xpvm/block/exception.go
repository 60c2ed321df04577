package block

import "fmt"

// Exception numbers raised inside the VM. They are catchable by handler
// tables; numbers from ExcUser upward are free for programs to throw.
type Exception uint64

const (
	ExcNone Exception = iota
	ExcIllegalAddress
	ExcIllegalOperation
	ExcBadBlock
	ExcDivideByZero
	ExcOutOfMemory
	ExcAlreadyOwner
	ExcNotOwner
	ExcIllegalChain
	ExcBadNativeRef

	ExcUser Exception = 256
)

var exceptionNames = map[Exception]string{
	ExcNone:             "NONE",
	ExcIllegalAddress:   "ILLEGAL_ADDRESS",
	ExcIllegalOperation: "ILLEGAL_OPERATION",
	ExcBadBlock:         "BAD_BLOCK",
	ExcDivideByZero:     "DIVIDE_BY_ZERO",
	ExcOutOfMemory:      "OUT_OF_MEMORY",
	ExcAlreadyOwner:     "ALREADY_OWNER",
	ExcNotOwner:         "NOT_OWNER",
	ExcIllegalChain:     "ILLEGAL_CHAIN",
	ExcBadNativeRef:     "BAD_NATIVE_REF",
}

func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EXCEPTION_%d", uint64(e))
}
