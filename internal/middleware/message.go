package middleware

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Int32 is the single-field integer message (std_msgs/Int32 layout).
type Int32 struct {
	Data int32 `json:"data"`
}

// Int32TypeName is the schema identifier carried by the Int32 type support.
const Int32TypeName = "std_msgs/msg/Int32"

// cdrHeader is the CDR little-endian encapsulation header.
var cdrHeader = [4]byte{0x00, 0x01, 0x00, 0x00}

// TypeSupport binds a message schema to its serializer.
type TypeSupport interface {
	// TypeName identifies the schema (e.g., "std_msgs/msg/Int32").
	TypeName() string

	// Serialize encodes msg. It returns ErrSerialize for foreign message types.
	Serialize(msg any) ([]byte, error)
}

// Encoding selects the Int32 wire encoding.
type Encoding string

const (
	// EncodingCDR is the 8-byte XCDR1 little-endian form: encapsulation
	// header followed by the int32.
	EncodingCDR Encoding = "cdr"

	// EncodingJSON is {"data":N}.
	EncodingJSON Encoding = "json"
)

// Int32Support returns the Int32 type support for enc.
// Unknown encodings fall back to CDR.
func Int32Support(enc Encoding) TypeSupport {
	if enc == EncodingJSON {
		return int32Support{encoding: EncodingJSON}
	}
	return int32Support{encoding: EncodingCDR}
}

type int32Support struct {
	encoding Encoding
}

func (int32Support) TypeName() string { return Int32TypeName }

func (s int32Support) Serialize(msg any) ([]byte, error) {
	var m Int32
	switch v := msg.(type) {
	case Int32:
		m = v
	case *Int32:
		if v == nil {
			return nil, fmt.Errorf("%w: nil %s", ErrSerialize, Int32TypeName)
		}
		m = *v
	default:
		return nil, fmt.Errorf("%w: %T is not %s", ErrSerialize, msg, Int32TypeName)
	}

	if s.encoding == EncodingJSON {
		out, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerialize, err)
		}
		return out, nil
	}

	out := make([]byte, len(cdrHeader)+4)
	copy(out, cdrHeader[:])
	binary.LittleEndian.PutUint32(out[len(cdrHeader):], uint32(m.Data))
	return out, nil
}

// DecodeInt32CDR decodes a CDR Int32 payload. Subscriber-side tooling and
// tests use it to read back what the publisher emitted.
func DecodeInt32CDR(b []byte) (Int32, error) {
	if len(b) != len(cdrHeader)+4 {
		return Int32{}, fmt.Errorf("%w: want %d bytes, got %d", ErrSerialize, len(cdrHeader)+4, len(b))
	}
	if b[0] != cdrHeader[0] || b[1] != cdrHeader[1] {
		return Int32{}, fmt.Errorf("%w: unsupported encapsulation %#x%02x", ErrSerialize, b[0], b[1])
	}
	return Int32{Data: int32(binary.LittleEndian.Uint32(b[len(cdrHeader):]))}, nil
}
