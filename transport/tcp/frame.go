package tcp

import (
	"encoding/binary"
	"io"

	"github.com/aistore-labs/ridx/rerr"
)

// frame header: [4 bytes tag, signed big-endian][4 bytes payload length].
const headerSize = 8

func writeFrame(w io.Writer, tag int, payload []byte) error {
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(int32(tag)))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr); err != nil {
		return rerr.NewTransportFailure("write frame header", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return rerr.NewTransportFailure("write frame payload", err)
	}
	return nil
}

func readFrame(r io.Reader) (tag int, payload []byte, err error) {
	hdr := make([]byte, headerSize)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return 0, nil, err
	}
	tag = int(int32(binary.BigEndian.Uint32(hdr[0:4])))
	n := binary.BigEndian.Uint32(hdr[4:8])
	payload = make([]byte, n)
	if n > 0 {
		if _, err = io.ReadFull(r, payload); err != nil {
			return 0, nil, rerr.NewTransportFailure("read frame payload", err)
		}
	}
	return tag, payload, nil
}
