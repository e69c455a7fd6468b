package queue

import "github.com/ict-project/goqueue/internal/qerr"

// Sentinel errors returned by Queue operations. Use errors.Is to test for
// them; they are wrapped with contextual information via
// github.com/pkg/errors before being returned.
var (
	ErrUnderflow       = qerr.ErrUnderflow
	ErrOverflow        = qerr.ErrOverflow
	ErrDomain          = qerr.ErrDomain
	ErrInvalidArgument = qerr.ErrInvalidArgument
	ErrOutOfRange      = qerr.ErrOutOfRange
)
