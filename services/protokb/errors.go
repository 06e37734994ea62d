// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package protokb

import "errors"

var (
	// ErrNotReady is returned while no knowledge base has been loaded.
	ErrNotReady = errors.New("no knowledge base loaded")

	// ErrNoSources is returned by Reload and Watch when nothing is configured
	// to load from.
	ErrNoSources = errors.New("no sources configured")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeMissingID      = "MISSING_ID"
	CodeInvalidID      = "INVALID_ID"
	CodeNotFound       = "NOT_FOUND"
	CodeNotReady       = "NOT_READY"
	CodeFixPointFailed = "FIXPOINT_FAILED"
)
