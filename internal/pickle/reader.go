package pickle

import (
	"encoding/binary"
	"io"
	"math"
)

// framedReader is a byte cursor over the whole pickle stream that is aware
// of FRAME boundaries: once a frame is opened, reads are served from that
// frame's slice and may not cross into the unframed remainder, matching the
// reference unframer's behaviour of treating a short frame as corruption
// rather than silently spilling into the next opcode.
type framedReader struct {
	data   []byte
	offset int64 // offset of data[0] in the original stream, for error reporting

	frame       []byte
	inFrame     bool
}

func newFramedReader(data []byte) *framedReader {
	return &framedReader{data: data}
}

func (r *framedReader) pos() int64 { return r.offset }

func (r *framedReader) frameFinished() bool {
	return !r.inFrame || len(r.frame) == 0
}

func (r *framedReader) beginFrame(size uint64) error {
	if r.inFrame && len(r.frame) != 0 {
		return errFrameNotClosed
	}
	if size > uint64(^uint(0)>>1) {
		return errFrameTooLarge
	}
	n := int(size)
	if n > len(r.data) {
		return errFrameBoundary
	}
	r.frame = r.data[:n]
	r.inFrame = true
	return nil
}

func (r *framedReader) readExact(n int) ([]byte, error) {
	if r.frameFinished() {
		r.inFrame = false
	}
	if r.inFrame {
		if n > len(r.frame) {
			return nil, errFrameBoundary
		}
		b := r.frame[:n]
		r.frame = r.frame[n:]
		r.data = r.data[n:]
		r.offset += int64(n)
		return b, nil
	}
	if n > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[:n]
	r.data = r.data[n:]
	r.offset += int64(n)
	return b, nil
}

func (r *framedReader) readByte() (byte, error) {
	b, err := r.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *framedReader) readUint16LE() (uint16, error) {
	b, err := r.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *framedReader) readUint32LE() (uint32, error) {
	b, err := r.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *framedReader) readInt32LE() (int32, error) {
	v, err := r.readUint32LE()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (r *framedReader) readUint64LE() (uint64, error) {
	b, err := r.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *framedReader) readFloat64BE() (float64, error) {
	b, err := r.readExact(8)
	if err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(b)
	return math.Float64frombits(bits), nil
}
