// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package slides

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidPresentationID is returned for inputs that are neither a
// presentation id nor a presentation URL.
var ErrInvalidPresentationID = errors.New("invalid presentation id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)

// SlidesHost is the only host accepted in presentation URLs.
const SlidesHost = "docs.google.com"

// ParsePresentationID accepts a raw id or a Google Slides URL such as
// https://docs.google.com/presentation/d/<id>/edit and returns the id. The
// scheme may be omitted.
func ParsePresentationID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if idPattern.MatchString(input) {
		return input, nil
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	u, err := url.Parse(input)
	if err != nil || !strings.EqualFold(u.Hostname(), SlidesHost) {
		return "", ErrInvalidPresentationID
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "d" && idPattern.MatchString(parts[i+1]) {
			return parts[i+1], nil
		}
	}
	return "", ErrInvalidPresentationID
}
