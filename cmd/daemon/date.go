// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/threadwarden/internal/directive"
)

// parseRunDate reads a --date value as YYYY-MM-DD in loc. An empty value
// yields nil, meaning today.
func parseRunDate(raw string, loc *time.Location) (*directive.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("--date %q: expected YYYY-MM-DD", raw)
	}
	d := directive.DateOf(t, loc)
	return &d, nil
}
