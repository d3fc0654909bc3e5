package postprocess

import "github.com/pkg/errors"

var (
	// ErrLabelCountMismatch is returned when a score vector and its label list differ in length.
	ErrLabelCountMismatch = errors.New("label count mismatch")
	// ErrLabelIndexOutOfRange is returned when a decoded class index has no label.
	ErrLabelIndexOutOfRange = errors.New("label index out of range")
	// ErrMalformedOutput is returned when a raw tensor does not match its declared shape.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrInvalidTaskPayload is returned when a payload does not fit the predictor's task.
	// It signals a wiring bug in the pipeline, not bad input data.
	ErrInvalidTaskPayload = errors.New("invalid task payload")
)

// IsDecodeError reports whether err is a per-frame decode failure that the pipeline
// recovers from by returning an empty result.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrLabelCountMismatch) ||
		errors.Is(err, ErrLabelIndexOutOfRange) ||
		errors.Is(err, ErrMalformedOutput)
}
