package measure

import "errors"

var (
	// ErrInvalidEncoding is returned when a frame carrying an exponent marker
	// is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrMalformedNumber is returned when scientific-notation text does not
	// parse as a float.
	ErrMalformedNumber = errors.New("malformed number")

	// ErrNumberFormat is returned by Parse when the normalized text is not a
	// decimal float.
	ErrNumberFormat = errors.New("number format")

	// ErrEmptyReading marks a parse failure caused by an empty frame, as
	// produced by a read timeout.
	ErrEmptyReading = errors.New("empty reading")
)
