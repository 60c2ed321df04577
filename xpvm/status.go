package xpvm

import "fmt"

// Status is the termination status of a processor. Zero is a normal return;
// negative values are fatal.
type Status int64

const (
	StatusNormal             Status = 0
	StatusDivideByZero       Status = -1
	StatusAddressOutOfRange  Status = -2
	StatusIllegalInstruction Status = -3
	StatusUncaughtException  Status = -4
	StatusOutOfMemory        Status = -5

	// StatusRunning is reported by join2 for a processor that has not finished.
	StatusRunning Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusDivideByZero:
		return "divide-by-zero"
	case StatusAddressOutOfRange:
		return "address-out-of-range"
	case StatusIllegalInstruction:
		return "illegal-instruction"
	case StatusUncaughtException:
		return "uncaught-exception"
	case StatusOutOfMemory:
		return "out-of-memory"
	case StatusRunning:
		return "running"
	}
	return fmt.Sprintf("status(%d)", int64(s))
}

// Result is what a processor packages up when it terminates.
type Result struct {
	Proc   uint64 `json:"proc"`
	Status Status `json:"status"`
	Value  uint64 `json:"value"`
	Steps  uint64 `json:"steps"`
	Err    error  `json:"-"`
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("proc %d: status=%d (%s) value=%d steps=%d err=%v", r.Proc, r.Status, r.Status, r.Value, r.Steps, r.Err)
	}
	return fmt.Sprintf("proc %d: status=%d (%s) value=%d steps=%d", r.Proc, r.Status, r.Status, r.Value, r.Steps)
}
