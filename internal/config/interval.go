// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned for malformed <integer><h|d> interval values.
// It is a fatal configuration error at startup, not a per-call error.
type ErrInvalidInterval struct {
	Value string
}

func (e *ErrInvalidInterval) Error() string {
	return fmt.Sprintf("invalid interval %q: expected <integer> followed by 'h' or 'd'", e.Value)
}

// ParseInterval parses the compact duration form used by the Trakt settings:
// an integer followed by a unit suffix, where "h" is hours and "d" is days.
//
//	ParseInterval("12h") // 12 * time.Hour
//	ParseInterval("1d")  // 24 * time.Hour
func ParseInterval(value string) (time.Duration, error) {
	if len(value) < 2 {
		return 0, &ErrInvalidInterval{Value: value}
	}

	unit := value[len(value)-1:]
	number := strings.TrimSpace(value[:len(value)-1])

	n, err := strconv.Atoi(number)
	if err != nil || n <= 0 {
		return 0, &ErrInvalidInterval{Value: value}
	}

	switch unit {
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, &ErrInvalidInterval{Value: value}
	}
}
