package compositor

import "errors"

// Sentinel errors - mapped to public errors in the mcu package.
var (
	ErrInputOutOfRange = errors.New("compositor: input index out of range")
	ErrInvalidMaxInput = errors.New("compositor: maxInput must be positive")
	ErrInvalidRootSize = errors.New("compositor: invalid root size")
	ErrRootSizeFixed   = errors.New("compositor: root size is fixed at construction")
	ErrBgColorFixed    = errors.New("compositor: background color is fixed at construction")
)
