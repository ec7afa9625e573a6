package max30003

import "errors"

var (
	// ErrTransport is returned when the SPI transfer itself failed.
	ErrTransport = errors.New("max30003: transport error")
	// ErrUnknownRegister is returned for an address that is not part of the
	// register map.
	ErrUnknownRegister = errors.New("max30003: unknown register")
	// ErrInvalidFieldValue is returned when a value does not fit the bit
	// width of its field, or a configuration value has no encoding.
	ErrInvalidFieldValue = errors.New("max30003: invalid field value")
	// ErrReadOnlyRegister is returned when writing a read-only register.
	ErrReadOnlyRegister = errors.New("max30003: read-only register")
	// ErrWriteOnlyRegister is returned when reading a register that can
	// only be written (command registers).
	ErrWriteOnlyRegister = errors.New("max30003: write-only register")
	// ErrInitializationTimeout is returned by Initialize when the chip did
	// not report ready within the retry budget. Initialize may be retried.
	ErrInitializationTimeout = errors.New("max30003: initialization timeout")
	// ErrInvalidState is returned when an operation is called outside of
	// the lifecycle state it is valid in.
	ErrInvalidState = errors.New("max30003: invalid state")
	// ErrUnknownTag is returned when a FIFO word carries a reserved ETAG.
	// The burst is corrupted and the device should be reset.
	ErrUnknownTag = errors.New("max30003: unknown FIFO tag")
	// ErrTruncatedWord is returned when a burst does not end on a word
	// boundary.
	ErrTruncatedWord = errors.New("max30003: truncated FIFO word")
)
