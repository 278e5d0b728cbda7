// Package link implements the acknowledged update channel between a group
// controller and the central control unit, its byte-level wire format and
// the transport abstraction underneath.
package link

import (
	"errors"
	"fmt"
)

// Wire tags.
const (
	TagStatus  byte = 'S'
	TagReserve byte = 'R'

	StatusAvailable byte = 'A'
	StatusOccupied  byte = 'O'
)

// MaxSpaces is the largest number of spaces addressable by the one-byte index.
const MaxSpaces = 256

// ErrInvalidPayload is returned when a payload cannot be decoded.
var ErrInvalidPayload = errors.New("link: invalid payload")

// EncodeStatus builds the 3-byte status message: 'S', index, 'A' or 'O'.
func EncodeStatus(space int, available bool) ([]byte, error) {
	if space < 0 || space >= MaxSpaces {
		return nil, fmt.Errorf("encode status: space %d does not fit in one byte", space)
	}
	state := StatusOccupied
	if available {
		state = StatusAvailable
	}
	return []byte{TagStatus, byte(space), state}, nil
}

// DecodeStatus parses a status message.
func DecodeStatus(p []byte) (space int, available bool, err error) {
	if len(p) != 3 || p[0] != TagStatus {
		return 0, false, ErrInvalidPayload
	}
	switch p[2] {
	case StatusAvailable:
		return int(p[1]), true, nil
	case StatusOccupied:
		return int(p[1]), false, nil
	default:
		return 0, false, fmt.Errorf("status byte %q: %w", p[2], ErrInvalidPayload)
	}
}

// EncodeReserve builds a reserve command: 'R', index.
func EncodeReserve(space int) ([]byte, error) {
	if space < 0 || space >= MaxSpaces {
		return nil, fmt.Errorf("encode reserve: space %d does not fit in one byte", space)
	}
	return []byte{TagReserve, byte(space)}, nil
}

// DecodeReserve parses a reserve command. Trailing bytes are ignored.
func DecodeReserve(p []byte) (int, error) {
	if len(p) < 2 || p[0] != TagReserve {
		return 0, ErrInvalidPayload
	}
	return int(p[1]), nil
}
