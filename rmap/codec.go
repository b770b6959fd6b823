package rmap

import "encoding/binary"

// The three wire records of map construction are all fixed-width so
// phases can slice the all-to-all-v payload without a length prefix per
// element.

// indexRecord is both the Phase 1 source record (rank=owner,
// slot=src_slot) and destination record (rank=wanter, slot=dst_slot);
// which one it is follows from which round it travels in.
type indexRecord struct {
	Index int64
	Rank  int32
	Slot  int32
}

const indexRecordSize = 16

func encodeIndexRecords(recs []indexRecord) []byte {
	buf := make([]byte, len(recs)*indexRecordSize)
	for i, rec := range recs {
		off := i * indexRecordSize
		binary.LittleEndian.PutUint64(buf[off:], uint64(rec.Index))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(rec.Rank))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(rec.Slot))
	}
	return buf
}

func decodeIndexRecords(buf []byte) []indexRecord {
	n := len(buf) / indexRecordSize
	recs := make([]indexRecord, n)
	for i := range recs {
		off := i * indexRecordSize
		recs[i] = indexRecord{
			Index: int64(binary.LittleEndian.Uint64(buf[off:])),
			Rank:  int32(binary.LittleEndian.Uint32(buf[off+8:])),
			Slot:  int32(binary.LittleEndian.Uint32(buf[off+12:])),
		}
	}
	return recs
}

// matchTuple is the Phase 3 record: a source slot matched to a
// destination slot, plus both endpoints' ranks so it can be routed to
// whichever of owner/wanter hasn't seen it yet.
type matchTuple struct {
	Owner   int32
	SrcSlot int32
	Wanter  int32
	DstSlot int32
}

const matchTupleSize = 16

func encodeMatchTuples(tuples []matchTuple) []byte {
	buf := make([]byte, len(tuples)*matchTupleSize)
	for i, t := range tuples {
		off := i * matchTupleSize
		binary.LittleEndian.PutUint32(buf[off:], uint32(t.Owner))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(t.SrcSlot))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(t.Wanter))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(t.DstSlot))
	}
	return buf
}

func decodeMatchTuples(buf []byte) []matchTuple {
	n := len(buf) / matchTupleSize
	tuples := make([]matchTuple, n)
	for i := range tuples {
		off := i * matchTupleSize
		tuples[i] = matchTuple{
			Owner:   int32(binary.LittleEndian.Uint32(buf[off:])),
			SrcSlot: int32(binary.LittleEndian.Uint32(buf[off+4:])),
			Wanter:  int32(binary.LittleEndian.Uint32(buf[off+8:])),
			DstSlot: int32(binary.LittleEndian.Uint32(buf[off+12:])),
		}
	}
	return tuples
}

// diagKind distinguishes the two error conditions broadcast through the
// same all-gather round after Phase 2.
type diagKind int32

const (
	diagUnmatched diagKind = iota
	diagDuplicateOwnerFatal
)

// diagRecord carries either an UnmatchedIndex or a strict-mode
// DuplicateOwner candidate. A and B are interpreted per Kind: for
// diagUnmatched, A is the wanting rank; for diagDuplicateOwnerFatal, A
// is the winning rank and B is the losing rank.
type diagRecord struct {
	Kind  diagKind
	Index int64
	A     int32
	B     int32
}

const diagRecordSize = 20

func encodeDiagRecords(recs []diagRecord) []byte {
	buf := make([]byte, len(recs)*diagRecordSize)
	for i, rec := range recs {
		off := i * diagRecordSize
		binary.LittleEndian.PutUint32(buf[off:], uint32(rec.Kind))
		binary.LittleEndian.PutUint64(buf[off+4:], uint64(rec.Index))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(rec.A))
		binary.LittleEndian.PutUint32(buf[off+16:], uint32(rec.B))
	}
	return buf
}

func decodeDiagRecords(buf []byte) []diagRecord {
	n := len(buf) / diagRecordSize
	recs := make([]diagRecord, n)
	for i := range recs {
		off := i * diagRecordSize
		recs[i] = diagRecord{
			Kind:  diagKind(binary.LittleEndian.Uint32(buf[off:])),
			Index: int64(binary.LittleEndian.Uint64(buf[off+4:])),
			A:     int32(binary.LittleEndian.Uint32(buf[off+12:])),
			B:     int32(binary.LittleEndian.Uint32(buf[off+16:])),
		}
	}
	return recs
}
