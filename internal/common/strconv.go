package common

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidID is returned by ParseID for malformed or non-positive ids.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive integer identifier from a path or query value.
func ParseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
