package quarkidutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Challenge ids have the form <unix-milliseconds>-<counter>, e.g.
// "1638725293444-1085". The counter disambiguates sessions created within
// the same millisecond.

func TimeMilliFromID(id string) (int64, error) {
	i := strings.IndexByte(id, '-')
	if i <= 0 {
		return 0, fmt.Errorf("ID has no timestamp part")
	}

	ms, err := strconv.ParseInt(id[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp part: %w", err)
	}

	return ms, nil
}
