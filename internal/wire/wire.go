// Package wire implements the protobuf wire format (varint + length-delimited
// encoding, field tags) on top of google.golang.org/protobuf/encoding/protowire,
// since no protoc toolchain runs in this environment to generate .pb.go code.
// Field numbers and wire types below match the message layout spec.md §6
// lists, so a real protobuf client/server would interoperate with bytes
// produced and consumed here.
package wire

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTruncated is returned when a buffer ends mid-field.
var ErrTruncated = errors.New("wire: truncated message")

// AppendVarint appends an unsigned varint.
func AppendVarint(buf []byte, v uint64) []byte {
	return protowire.AppendVarint(buf, v)
}

func appendTag(buf []byte, fieldNum int, wireType protowire.Type) []byte {
	return protowire.AppendTag(buf, protowire.Number(fieldNum), wireType)
}

// AppendString appends a proto3 string field, omitted entirely when empty.
func AppendString(buf []byte, fieldNum int, s string) []byte {
	if s == "" {
		return buf
	}
	buf = appendTag(buf, fieldNum, protowire.BytesType)
	return protowire.AppendString(buf, s)
}

// AppendBytes appends an embedded-message / bytes field, omitted when empty.
func AppendBytes(buf []byte, fieldNum int, b []byte) []byte {
	if len(b) == 0 {
		return buf
	}
	buf = appendTag(buf, fieldNum, protowire.BytesType)
	return protowire.AppendBytes(buf, b)
}

// AppendInt64 appends a proto3 int64 field, omitted when zero.
func AppendInt64(buf []byte, fieldNum int, v int64) []byte {
	if v == 0 {
		return buf
	}
	buf = appendTag(buf, fieldNum, protowire.VarintType)
	return protowire.AppendVarint(buf, uint64(v))
}

// AppendUint32 appends a proto3 uint32 field, omitted when zero.
func AppendUint32(buf []byte, fieldNum int, v uint32) []byte {
	if v == 0 {
		return buf
	}
	buf = appendTag(buf, fieldNum, protowire.VarintType)
	return protowire.AppendVarint(buf, uint64(v))
}

// AppendBool appends a proto3 bool field, omitted when false.
func AppendBool(buf []byte, fieldNum int, v bool) []byte {
	if !v {
		return buf
	}
	buf = appendTag(buf, fieldNum, protowire.VarintType)
	return protowire.AppendVarint(buf, 1)
}

// AppendStringMap appends a proto3 map<string,string> field as a sequence
// of length-delimited {key: 1, value: 2} entries sharing fieldNum, sorted
// by key for deterministic output.
func AppendStringMap(buf []byte, fieldNum int, m map[string]string) []byte {
	if len(m) == 0 {
		return buf
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = AppendString(entry, 1, k)
		entry = AppendString(entry, 2, m[k])
		buf = AppendBytes(buf, fieldNum, entry)
	}
	return buf
}

// Reader decodes a sequence of protobuf wire fields.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for field-by-field decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Done reports whether every byte has been consumed.
func (r *Reader) Done() bool {
	return r.pos >= len(r.data)
}

// ReadVarint decodes the next unsigned varint.
func (r *Reader) ReadVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.data[r.pos:])
	if n < 0 {
		return 0, ErrTruncated
	}
	r.pos += n
	return v, nil
}

// ReadTag decodes the next field tag into its field number and wire type.
func (r *Reader) ReadTag() (fieldNum int, wireType int, err error) {
	num, typ, n := protowire.ConsumeTag(r.data[r.pos:])
	if n < 0 {
		return 0, 0, ErrTruncated
	}
	r.pos += n
	return int(num), int(typ), nil
}

// ReadBytes decodes a length-delimited field's raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	b, n := protowire.ConsumeBytes(r.data[r.pos:])
	if n < 0 {
		return nil, ErrTruncated
	}
	r.pos += n
	return b, nil
}

// ReadString decodes a length-delimited field as a string.
func (r *Reader) ReadString() (string, error) {
	s, n := protowire.ConsumeString(r.data[r.pos:])
	if n < 0 {
		return "", ErrTruncated
	}
	r.pos += n
	return s, nil
}

// SkipField discards a field's value given its wire type, for forward
// compatibility with unknown fields.
func (r *Reader) SkipField(wireType int) error {
	switch protowire.Type(wireType) {
	case protowire.VarintType:
		_, err := r.ReadVarint()
		return err
	case protowire.BytesType:
		_, err := r.ReadBytes()
		return err
	default:
		return fmt.Errorf("wire: unsupported wire type %d", wireType)
	}
}

// ReadStringMapEntry decodes one map<string,string> entry from a
// length-delimited submessage with fields {1: key, 2: value}.
func ReadStringMapEntry(entry []byte) (key, value string, err error) {
	r := NewReader(entry)
	for !r.Done() {
		fieldNum, wireType, err := r.ReadTag()
		if err != nil {
			return "", "", err
		}
		switch fieldNum {
		case 1:
			key, err = r.ReadString()
			if err != nil {
				return "", "", err
			}
		case 2:
			value, err = r.ReadString()
			if err != nil {
				return "", "", err
			}
		default:
			if err := r.SkipField(wireType); err != nil {
				return "", "", err
			}
		}
	}
	return key, value, nil
}
