package vmerrors

import (
	"errors"
	"strings"
)

// Load (L) Errors
var (
	ErrLFileNotFound      = errors.New("L1|FileNotFound: Object file does not exist or cannot be opened.")
	ErrLBadMagic          = errors.New("L2|BadMagic: Object file does not start with the XPVM magic number.")
	ErrLMalformedObject   = errors.New("L3|MalformedObject: Object file is truncated or a block record is malformed.")
	ErrLNameTooLong       = errors.New("L4|NameTooLong: Block or symbol name exceeds 255 bytes.")
	ErrLNoBlocks          = errors.New("L5|NoBlocks: Object file contains no blocks, so there is no entry point.")
	ErrLUnresolvedNative  = errors.New("L6|UnresolvedNative: Native reference names a function missing from the native table.")
	ErrLBadNativeRefSlot  = errors.New("L7|BadNativeRefSlot: Native reference offset does not point at an instruction in the block.")
	ErrLBadHandlerRange   = errors.New("L8|BadHandlerRange: Exception handler range or target lies outside the block.")
	ErrLImageTooLarge     = errors.New("L9|ImageTooLarge: Loaded blocks do not fit in the arena.")
	ErrLUnknownNativeFunc = errors.New("L10|UnknownNativeFunc: Configured native function is not registered.")
)

// Fatal interpreter (F) Errors
var (
	ErrFIllegalInstruction = errors.New("F1|IllegalInstruction: Opcode is not mapped to a handler.")
	ErrFFetchOutOfRange    = errors.New("F2|FetchOutOfRange: Instruction fetch runs past the end of the current block.")
	ErrFArenaExhausted     = errors.New("F3|ArenaExhausted: Allocator arena has no room for the request.")
	ErrFNotExecutable      = errors.New("F4|NotExecutable: Entry block lacks the INSTRUCTION annotation.")
	ErrFUncaughtException  = errors.New("F5|UncaughtException: Exception unwound past the outermost frame.")
	ErrFDivideByZero       = errors.New("F6|DivideByZero: Uncaught divide-by-zero.")
	ErrFIllegalAddress     = errors.New("F7|IllegalAddress: Uncaught illegal memory access.")
)

// Processor (P) Errors
var (
	ErrPTooManyProcessors = errors.New("P1|TooManyProcessors: Processor limit reached.")
	ErrPUnknownProcessor  = errors.New("P2|UnknownProcessor: No processor with the given id.")
	ErrPTooManyArgs       = errors.New("P3|TooManyArgs: Too many arguments for a processor entry.")
)

var all = []error{
	ErrLFileNotFound, ErrLBadMagic, ErrLMalformedObject, ErrLNameTooLong, ErrLNoBlocks,
	ErrLUnresolvedNative, ErrLBadNativeRefSlot, ErrLBadHandlerRange, ErrLImageTooLarge, ErrLUnknownNativeFunc,
	ErrFIllegalInstruction, ErrFFetchOutOfRange, ErrFArenaExhausted, ErrFNotExecutable,
	ErrFUncaughtException, ErrFDivideByZero, ErrFIllegalAddress,
	ErrPTooManyProcessors, ErrPUnknownProcessor, ErrPTooManyArgs,
}

// sentinel returns the package error wrapped somewhere in err, or err itself.
func sentinel(err error) error {
	for _, s := range all {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := sentinel(err).Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := sentinel(err).Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(sentinel(err).Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
