// Package exchange implements Exchanger: the typed executor that moves
// values between a contiguous input buffer and a contiguous output
// buffer using a Map's schedule, posting per-peer transport operations
// concurrently and waiting on all of them together.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package exchange

import "github.com/aistore-labs/ridx/rerr"

// TransportTag names a fixed-width element type for the transport layer.
type TransportTag int32

const (
	TagInt8 TransportTag = iota
	TagInt16
	TagInt32
	TagInt64
	TagUint8
	TagUint16
	TagUint32
	TagUint64
	TagFloat32
	TagFloat64
)

// ElementType is a descriptor pair (byte size, transport type tag). The
// permutation logic in Exchanger is type-agnostic and only ever uses
// Size to compute byte strides.
type ElementType struct {
	Size int
	Tag  TransportTag
}

func Int8Type() ElementType    { return ElementType{Size: 1, Tag: TagInt8} }
func Int16Type() ElementType   { return ElementType{Size: 2, Tag: TagInt16} }
func Int32Type() ElementType   { return ElementType{Size: 4, Tag: TagInt32} }
func Int64Type() ElementType   { return ElementType{Size: 8, Tag: TagInt64} }
func Uint8Type() ElementType   { return ElementType{Size: 1, Tag: TagUint8} }
func Uint16Type() ElementType  { return ElementType{Size: 2, Tag: TagUint16} }
func Uint32Type() ElementType  { return ElementType{Size: 4, Tag: TagUint32} }
func Uint64Type() ElementType  { return ElementType{Size: 8, Tag: TagUint64} }
func Float32Type() ElementType { return ElementType{Size: 4, Tag: TagFloat32} }
func Float64Type() ElementType { return ElementType{Size: 8, Tag: TagFloat64} }

func (e ElementType) validate() error {
	if e.Size <= 0 {
		return rerr.NewInvalidArgument("element type size must be positive")
	}
	return nil
}
