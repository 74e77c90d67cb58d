// Package chat derives conversation room identifiers for a (patient, donor)
// pair. The derivation is deterministic so both participants compute the
// same id independently, without a lookup round-trip.
package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument means a participant id was missing or the room id is
// not of the expected form.
var ErrInvalidArgument = errors.New("invalid argument")

// RoomID returns the canonical id for the unordered pair (a, b): the two
// ids sorted as strings and joined with "_". Pure function, no I/O.
func RoomID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: both participant ids are required", ErrInvalidArgument)
	}
	if a > b {
		a, b = b, a
	}
	return a + "_" + b, nil
}

// RoomIDForUsers is RoomID over numeric user ids.
func RoomIDForUsers(a, b uint) (string, error) {
	return RoomID(strconv.FormatUint(uint64(a), 10), strconv.FormatUint(uint64(b), 10))
}

// Participants reverses the derivation, returning the two ids encoded in
// the room id.
func Participants(roomID string) (string, string, error) {
	parts := strings.Split(roomID, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed room id %q", ErrInvalidArgument, roomID)
	}
	return parts[0], parts[1], nil
}

// Authorized reports whether userID is one of the two participants encoded
// in the room id. Joins from anyone else are refused.
func Authorized(roomID string, userID string) bool {
	a, b, err := Participants(roomID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}
