// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remote

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ErrMalformedLink is returned by ParseAlternates for a link-value it
// cannot split into a target and parameters.
var ErrMalformedLink = errors.New("malformed link header")

// ParseAlternates returns the targets of the link-values in a Link header
// whose relation type is "alternate" (RFC 5988).
//
// Description:
//
//	Only the subset of the grammar the prototype server emits is
//	understood. A link-value qualifies when its first rel parameter is
//	alternate, "alternate", or a quoted space-separated list containing
//	alternate. Later rel parameters of the same link-value are ignored.
//	Empty link-values are skipped. Relative targets are returned as-is.
//
// Inputs:
//   - header: The raw value of one Link header.
//
// Outputs:
//   - []*url.URL: Alternate targets in header order. Empty, never an error,
//     when the header does not mention alternate at all.
//   - error: Wraps ErrMalformedLink when a candidate link-value is malformed.
func ParseAlternates(header string) ([]*url.URL, error) {
	if !strings.Contains(header, "alternate") {
		return nil, nil
	}

	var out []*url.URL
	for _, linkValue := range strings.Split(header, ",") {
		linkValue = strings.TrimSpace(linkValue)
		if linkValue == "" || !strings.Contains(linkValue, "alternate") {
			continue
		}

		target, params, ok := strings.Cut(linkValue, ">")
		if !ok || !strings.HasPrefix(target, "<") {
			return nil, fmt.Errorf("%w: %q", ErrMalformedLink, linkValue)
		}
		u, err := url.Parse(target[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformedLink, linkValue, err)
		}

		alternate, err := firstRelIsAlternate(params)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformedLink, linkValue, err)
		}
		if alternate {
			out = append(out, u)
		}
	}
	return out, nil
}

func firstRelIsAlternate(params string) (bool, error) {
	for _, param := range strings.Split(params, ";") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		name, value, ok := strings.Cut(param, "=")
		if !ok {
			return false, fmt.Errorf("parameter %q has no value", param)
		}
		if strings.TrimSpace(name) != "rel" {
			continue
		}

		value = strings.TrimSpace(value)
		if value == "alternate" || value == `"alternate"` {
			return true, nil
		}
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			return slices.Contains(strings.Split(value[1:len(value)-1], " "), "alternate"), nil
		}
		return false, nil
	}
	return false, nil
}

// FormatAlternate renders one Link header value for an alternate location.
func FormatAlternate(target string) string {
	return "<" + target + ">;rel=alternate"
}
