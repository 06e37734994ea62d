// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledgebase

import (
	"errors"
	"fmt"
)

// Identifier errors.
var (
	// ErrInvalidIdentifier indicates a string that is not an absolute IRI.
	ErrInvalidIdentifier = errors.New("not an absolute IRI")
)

// Consistency errors returned (wrapped in *ConsistencyError) by Builder.Build.
var (
	// ErrGroundingKey indicates P_0 was used as a key of the entries.
	ErrGroundingKey = errors.New("the empty prototype cannot be redefined")

	// ErrUndefinedParent indicates a parent that does not resolve.
	ErrUndefinedParent = errors.New("parent is not defined")

	// ErrUndefinedValue indicates an added value that does not resolve.
	ErrUndefinedValue = errors.New("added value is not defined")

	// ErrGroundingValue indicates P_0 used as an added value.
	ErrGroundingValue = errors.New("the empty prototype cannot be used as a value")

	// ErrRedefinition indicates an ID that the external base already defines.
	ErrRedefinition = errors.New("prototype is already defined in the external base")

	// ErrCycle indicates a parent chain that does not reach P_0.
	ErrCycle = errors.New("parent chain contains a cycle")
)

// Builder and lookup errors.
var (
	// ErrAlreadyDefined is returned when adding an ID that is already present.
	ErrAlreadyDefined = errors.New("prototype is already defined")

	// ErrExternallyDefined is returned when removing an ID owned by the external base.
	ErrExternallyDefined = errors.New("prototype is defined in the external base")

	// ErrNilPrototype is returned when adding a nil prototype.
	ErrNilPrototype = errors.New("prototype is nil")

	// ErrNotDefined is returned when an ID does not resolve.
	ErrNotDefined = errors.New("prototype is not defined")
)

// ConsistencyError reports a definition that violates a knowledge base invariant.
//
// Description:
//
//	Carries the offending prototype ID and the sentinel describing the
//	violated invariant. Detail names the other ID involved, if any
//	(the missing parent, the missing value, the repeated ancestor).
//
// Example:
//
//	var cerr *ConsistencyError
//	if errors.As(err, &cerr) && errors.Is(err, ErrCycle) {
//	    fmt.Println("cycle through", cerr.ID)
//	}
type ConsistencyError struct {
	// ID is the prototype whose definition is invalid.
	ID ID

	// Detail is the related identifier, empty when not applicable.
	Detail string

	// Err is one of the consistency sentinels.
	Err error
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("prototype %s: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("prototype %s: %v: %s", e.ID, e.Err, e.Detail)
}

// Unwrap returns the sentinel error.
func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

func inconsistent(id ID, err error, detail string) *ConsistencyError {
	return &ConsistencyError{ID: id, Detail: detail, Err: err}
}
