package block

import "errors"

var (
	ErrTooLarge     = errors.New("block size exceeds header limit")
	ErrNotAllocated = errors.New("handle is not a live block")
)
