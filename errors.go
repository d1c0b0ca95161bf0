package octobloom

import "errors"

var (
	// ErrInvalidParameter is returned when a caller-supplied sizing parameter
	// is out of range (non-positive expected count, false positive rate
	// outside (0, 1)).
	ErrInvalidParameter = errors.New("octobloom: invalid parameter")

	// ErrUnknownColumn is returned by column resolvers when a column name
	// does not exist on the target table.
	ErrUnknownColumn = errors.New("octobloom: unknown column")

	// ErrCapacityExceeded is returned when the registry cannot accommodate a
	// new filter within its entry or memory budget.
	ErrCapacityExceeded = errors.New("octobloom: registry capacity exceeded")

	// ErrUnsupportedOperation is returned for operations a plain
	// (non-counting) bloom filter cannot support, such as Remove.
	ErrUnsupportedOperation = errors.New("octobloom: operation not supported")

	// ErrTruncated is returned when serialized filter data is too short to
	// decode.
	ErrTruncated = errors.New("octobloom: serialized data truncated")

	// ErrInvalidData is returned when serialized filter data has a header
	// that cannot describe a valid filter.
	ErrInvalidData = errors.New("octobloom: invalid serialized data")
)
