package programs

import "errors"

var (
	ErrProgramNotFound    = errors.New("program not found")
	ErrProgramUnavailable = errors.New("program not available")
	ErrProgramFull        = errors.New("program is fully booked")
	ErrAlreadyBooked      = errors.New("already booked this program")
	ErrRatingNotFound     = errors.New("rating not found")
	ErrInvalidEmail       = errors.New("missing email")
	ErrInvalidStars       = errors.New("stars must be an integer between 1 and 5")
	ErrFieldNotAllowed    = errors.New("field may not be updated")
	ErrInvalidPatch       = errors.New("invalid patch")
)
