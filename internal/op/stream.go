package op

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteOperation writes one operation to w as a 4-byte big-endian length
// followed by the encoded item. Length and payload go out in a single
// Write call.
func WriteOperation(w io.Writer, o Operation) error {
	item, err := Encode(o)
	if err != nil {
		return err
	}

	buf := make([]byte, 4+len(item))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(item)))
	copy(buf[4:], item)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write operation: %w", err)
	}
	return nil
}

// ReadOperation reads one length-prefixed operation from r. It returns
// io.EOF only at a clean item boundary; a partial item is an
// io.ErrUnexpectedEOF.
func ReadOperation(r io.Reader) (Operation, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Operation{}, io.EOF
		}
		return Operation{}, fmt.Errorf("read operation length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxEncodedSize {
		return Operation{}, &DecodeError{Reason: "item exceeds maximum encoded size"}
	}

	item := make([]byte, n)
	if _, err := io.ReadFull(r, item); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Operation{}, fmt.Errorf("read operation payload: %w", err)
	}
	return Decode(item)
}
