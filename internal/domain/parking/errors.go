package parking

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrNoPlateDetected    = errors.New("no plate detected")
	ErrEmptyOCRResult     = errors.New("empty OCR result")
	ErrPlateTooShort      = errors.New("plate too short")
	ErrRecognitionTimeout = errors.New("recognition timeout")

	ErrSessionConflict    = errors.New("vehicle already parked")
	ErrSessionNotFound    = errors.New("no open session for plate")
	ErrInvalidDuration    = errors.New("invalid parking duration")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsRecognitionFailure reports whether err came out of the plate recognition stages.
func IsRecognitionFailure(err error) bool {
	return errors.Is(err, ErrNoPlateDetected) ||
		errors.Is(err, ErrEmptyOCRResult) ||
		errors.Is(err, ErrPlateTooShort) ||
		errors.Is(err, ErrRecognitionTimeout)
}
