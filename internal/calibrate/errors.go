package calibrate

import "errors"

// ErrNonConvergence indicates no threshold in the searched range produced
// the wanted silence density.
var ErrNonConvergence = errors.New("threshold calibration did not converge")

// ErrInvalidTarget indicates a non-positive target chunk length.
var ErrInvalidTarget = errors.New("invalid calibration target")
