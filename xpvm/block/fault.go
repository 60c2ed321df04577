package block

import (
	"fmt"

	"github.com/colorfulnotion/xpvm/vmerrors"
)

// Fault carries an exception that escaped every handler out of the VM as a
// Go error.
type Fault struct {
	Exception Exception
	Payload   uint64
	Block     Handle
	Offset    uint32
}

func (f *Fault) Error() string {
	return fmt.Sprintf("uncaught %s (payload %d) at %s+%#x", f.Exception, f.Payload, f.Block, f.Offset)
}

// Unwrap maps the exception onto the fatal error sentinels.
func (f *Fault) Unwrap() error {
	switch f.Exception {
	case ExcDivideByZero:
		return vmerrors.ErrFDivideByZero
	case ExcIllegalAddress:
		return vmerrors.ErrFIllegalAddress
	default:
		return vmerrors.ErrFUncaughtException
	}
}
