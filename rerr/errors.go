// Package rerr defines the typed error hierarchy surfaced by map
// construction and exchange.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package rerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// This source contains the inter-package errors that rmap, exchange and
// transport return and that callers are expected to handle by type.

type (
	// AllocationFailure wraps a local allocation error; fatal to the
	// call that triggered it.
	AllocationFailure struct {
		what string
		err  error
	}

	// GroupTooSmall signals a collective precondition violation: the
	// transport group does not have enough ranks for the requested op.
	GroupTooSmall struct {
		have, want int
	}

	// GroupInconsistent signals that ranks disagree about whether a
	// collective call is happening (e.g. mismatched participant count).
	GroupInconsistent struct {
		detail string
	}

	// UnmatchedIndex signals that some rank's destination list requested
	// a global index that no rank owns in its source list.
	UnmatchedIndex struct {
		Index  int64
		Wanter int
	}

	// DuplicateOwner signals that the same global index was claimed as
	// source by two distinct ranks; the lower rank wins and this is a
	// warning unless strict mode is enabled.
	DuplicateOwner struct {
		Index  int64
		Winner int
		Loser  int
		Fatal  bool
	}

	// TransportFailure wraps any error returned by the transport layer
	// during map construction or exchange; always fatal to the call.
	TransportFailure struct {
		op  string
		err error
	}

	// ShapeMismatch signals that a user buffer passed to Exchanger.Go is
	// too small for the map's schedule.
	ShapeMismatch struct {
		Buffer   string
		Want     int
		Have     int
	}

	// InvalidArgument signals a precondition violation on a pure local
	// call (e.g. LevelLift with nlevels < 1).
	InvalidArgument struct {
		what string
	}
)

func NewAllocationFailure(what string, cause error) *AllocationFailure {
	return &AllocationFailure{what: what, err: cause}
}

func (e *AllocationFailure) Error() string {
	return fmt.Sprintf("allocation failure (%s): %v", e.what, e.err)
}
func (e *AllocationFailure) Unwrap() error { return e.err }

func NewGroupTooSmall(have, want int) *GroupTooSmall {
	return &GroupTooSmall{have: have, want: want}
}

func (e *GroupTooSmall) Error() string {
	return fmt.Sprintf("group too small: have %d ranks, need at least %d", e.have, e.want)
}

func NewGroupInconsistent(detail string) *GroupInconsistent {
	return &GroupInconsistent{detail: detail}
}

func (e *GroupInconsistent) Error() string { return "group inconsistent: " + e.detail }

func NewUnmatchedIndex(index int64, wanter int) *UnmatchedIndex {
	return &UnmatchedIndex{Index: index, Wanter: wanter}
}

func (e *UnmatchedIndex) Error() string {
	return fmt.Sprintf("unmatched index %d requested by rank %d: no rank owns it as source", e.Index, e.Wanter)
}

func NewDuplicateOwner(index int64, winner, loser int, fatal bool) *DuplicateOwner {
	return &DuplicateOwner{Index: index, Winner: winner, Loser: loser, Fatal: fatal}
}

func (e *DuplicateOwner) Error() string {
	return fmt.Sprintf("index %d claimed as source by ranks %d and %d: rank %d wins",
		e.Index, e.Winner, e.Loser, e.Winner)
}

func NewTransportFailure(op string, cause error) *TransportFailure {
	return &TransportFailure{op: op, err: cause}
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.op, e.err)
}
func (e *TransportFailure) Unwrap() error { return e.err }

func NewShapeMismatch(buffer string, want, have int) *ShapeMismatch {
	return &ShapeMismatch{Buffer: buffer, Want: want, Have: have}
}

func (e *ShapeMismatch) Error() string {
	return fmt.Sprintf("%s buffer too small: need %d bytes, have %d", e.Buffer, e.Want, e.Have)
}

func NewInvalidArgument(what string) *InvalidArgument { return &InvalidArgument{what: what} }
func (e *InvalidArgument) Error() string              { return "invalid argument: " + e.what }

// Wrap adds a stack-carrying causal annotation via pkg/errors, used at
// package boundaries (transport -> rmap -> caller) so the root cause
// survives without string concatenation.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
