package discovery

import "errors"

// Decode errors. All are permanent: retrying the same transaction cannot fix them.
var (
	ErrAccountsTooShort = errors.New("instruction has fewer accounts than the layout requires")
	ErrProgramIndex     = errors.New("program index out of range")
	ErrAccountIndex     = errors.New("account index out of range")
	ErrNotCreation      = errors.New("instruction is not a pool creation")
)
