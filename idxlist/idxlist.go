// Package idxlist implements IndexList: an immutable, rank-local list of
// global integer indices owned by a process in one role (source or
// destination).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package idxlist

// IndexList is immutable after construction. Position i in Indices is the
// local slot for Indices[i] on this rank. No sort is imposed and
// duplicates are permitted.
type IndexList struct {
	indices []int64
}

// New copies indices into a new IndexList. The caller's slice may be
// reused or mutated after this call returns.
func New(indices []int64) *IndexList {
	cp := make([]int64, len(indices))
	copy(cp, indices)
	return &IndexList{indices: cp}
}

// NewEmpty returns an IndexList with zero elements, marking this rank as
// not participating in the corresponding role.
func NewEmpty() *IndexList {
	return &IndexList{}
}

// Len returns the number of indices (the slot count).
func (l *IndexList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.indices)
}

// At returns the global index at local slot i.
func (l *IndexList) At(i int) int64 { return l.indices[i] }

// Slice returns the underlying indices. Callers must not mutate the
// returned slice.
func (l *IndexList) Slice() []int64 {
	if l == nil {
		return nil
	}
	return l.indices
}
