package op

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// codecVersion is bumped only on breaking wire changes.
	codecVersion = 1

	// headerSize is the fixed prefix of an encoded operation:
	// 1 byte version + 1 byte kind + 4 bytes chunk + 4 bytes base offset
	// + 8 bytes file size.
	headerSize = 18

	// MaxEncodedSize bounds a single encoded operation. Paths are bounded
	// far below this on every filesystem we care about.
	MaxEncodedSize = 1 << 20
)

// ErrTooLarge is returned when an operation exceeds MaxEncodedSize.
var ErrTooLarge = errors.New("operation exceeds maximum encoded size")

// DecodeError describes a malformed wire item. Malformed items are
// defects, not retriable conditions.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode operation: " + e.Reason
}

// Encode serializes o to its wire form.
// Layout: [1 version][1 kind][4 chunk][4 base offset][8 file size]
// [4 appendix len][appendix][4 operand len][operand], all big-endian.
// Both paths are length-prefixed so arbitrary bytes, including the
// separator, survive the round trip.
func Encode(o Operation) ([]byte, error) {
	if o.Operand == "" {
		return nil, errors.New("encode operation: empty operand")
	}
	if o.Kind != Treewalk && o.Kind != Copy {
		return nil, fmt.Errorf("encode operation: invalid %s", o.Kind)
	}

	total := headerSize + 4 + len(o.DestBaseAppendix) + 4 + len(o.Operand)
	if total > MaxEncodedSize {
		return nil, ErrTooLarge
	}

	buf := make([]byte, total)
	buf[0] = codecVersion
	buf[1] = byte(o.Kind)
	binary.BigEndian.PutUint32(buf[2:6], o.Chunk)
	binary.BigEndian.PutUint32(buf[6:10], o.SourceBaseOffset)
	binary.BigEndian.PutUint64(buf[10:18], o.FileSize)

	n := headerSize
	n += putBytes(buf[n:], o.DestBaseAppendix)
	putBytes(buf[n:], o.Operand)
	return buf, nil
}

// Decode parses an encoded operation. Every failure mode is explicit; a
// truncated item never yields a truncated path.
func Decode(data []byte) (Operation, error) {
	if len(data) > MaxEncodedSize {
		return Operation{}, &DecodeError{Reason: "item exceeds maximum encoded size"}
	}
	if len(data) < headerSize {
		return Operation{}, &DecodeError{Reason: fmt.Sprintf("truncated header: %d bytes", len(data))}
	}
	if data[0] != codecVersion {
		return Operation{}, &DecodeError{Reason: fmt.Sprintf("unknown codec version %d", data[0])}
	}

	kind := Kind(data[1])
	if kind != Treewalk && kind != Copy {
		return Operation{}, &DecodeError{Reason: fmt.Sprintf("unknown %s", kind)}
	}

	o := Operation{
		Kind:             kind,
		Chunk:            binary.BigEndian.Uint32(data[2:6]),
		SourceBaseOffset: binary.BigEndian.Uint32(data[6:10]),
		FileSize:         binary.BigEndian.Uint64(data[10:18]),
	}

	rest := data[headerSize:]
	appendix, rest, err := getBytes(rest, "dest base appendix")
	if err != nil {
		return Operation{}, err
	}
	operand, rest, err := getBytes(rest, "operand")
	if err != nil {
		return Operation{}, err
	}
	if len(rest) != 0 {
		return Operation{}, &DecodeError{Reason: fmt.Sprintf("%d trailing bytes", len(rest))}
	}
	if len(operand) == 0 {
		return Operation{}, &DecodeError{Reason: "empty operand"}
	}

	o.DestBaseAppendix = string(appendix)
	o.Operand = string(operand)
	return o, nil
}

func putBytes(buf []byte, s string) int {
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(s)))
	copy(buf[4:], s)
	return 4 + len(s)
}

func getBytes(data []byte, field string) (val, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, &DecodeError{Reason: "truncated " + field + " length"}
	}
	n := binary.BigEndian.Uint32(data[0:4])
	if uint32(len(data)-4) < n {
		return nil, nil, &DecodeError{Reason: fmt.Sprintf("truncated %s: want %d bytes, have %d", field, n, len(data)-4)}
	}
	return data[4 : 4+n], data[4+n:], nil
}
