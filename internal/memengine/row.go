package memengine

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/internal/buf"
)

// Field type tags of the row format.
const (
	fieldInt    = 1
	fieldFloat  = 2
	fieldString = 3
	fieldBytes  = 4
)

// Fields is one row's property values. Supported value types: int64,
// float64, string, []byte and bool (stored as 0/1 int64). A property absent
// from the map is null.
type Fields map[core.PropertyID]any

// EncodeFields serializes fields through the shared encode buffer and
// returns the encoded row, valid until the builder's next session.
//
// Layout per field: property id (u32), type tag (u8), payload. Fields are
// written in ascending property-id order so encodings are deterministic.
func EncodeFields(b *buf.Builder, fields Fields) ([]byte, error) {
	if err := b.Reset(); err != nil {
		return nil, err
	}

	ids := make([]core.PropertyID, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := b.AppendUint32(uint32(id)); err != nil {
			return nil, err
		}
		switch v := fields[id].(type) {
		case int64:
			if err := b.AppendByte(fieldInt); err != nil {
				return nil, err
			}
			if err := b.AppendUint64(uint64(v)); err != nil {
				return nil, err
			}
		case bool:
			var i uint64
			if v {
				i = 1
			}
			if err := b.AppendByte(fieldInt); err != nil {
				return nil, err
			}
			if err := b.AppendUint64(i); err != nil {
				return nil, err
			}
		case float64:
			if err := b.AppendByte(fieldFloat); err != nil {
				return nil, err
			}
			if err := b.AppendUint64(math.Float64bits(v)); err != nil {
				return nil, err
			}
		case string:
			if err := b.AppendByte(fieldString); err != nil {
				return nil, err
			}
			if err := b.AppendUint32(uint32(len(v))); err != nil {
				return nil, err
			}
			if err := b.Append([]byte(v)); err != nil {
				return nil, err
			}
		case []byte:
			if err := b.AppendByte(fieldBytes); err != nil {
				return nil, err
			}
			if err := b.AppendUint32(uint32(len(v))); err != nil {
				return nil, err
			}
			if err := b.Append(v); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("memengine: unsupported field type %T for property %d", v, id)
		}
	}
	return b.Bytes(), nil
}

// DecodeFields parses an encoded row back into its property values.
func DecodeFields(row []byte) (Fields, error) {
	fields := make(Fields)
	for len(row) > 0 {
		if len(row) < 5 {
			return nil, fmt.Errorf("memengine: truncated field header (%d bytes)", len(row))
		}
		id := core.PropertyID(binary.LittleEndian.Uint32(row))
		tag := row[4]
		row = row[5:]

		switch tag {
		case fieldInt:
			if len(row) < 8 {
				return nil, fmt.Errorf("memengine: truncated int field %d", id)
			}
			fields[id] = int64(binary.LittleEndian.Uint64(row))
			row = row[8:]
		case fieldFloat:
			if len(row) < 8 {
				return nil, fmt.Errorf("memengine: truncated float field %d", id)
			}
			fields[id] = math.Float64frombits(binary.LittleEndian.Uint64(row))
			row = row[8:]
		case fieldString, fieldBytes:
			if len(row) < 4 {
				return nil, fmt.Errorf("memengine: truncated length of field %d", id)
			}
			n := int(binary.LittleEndian.Uint32(row))
			row = row[4:]
			if len(row) < n {
				return nil, fmt.Errorf("memengine: truncated payload of field %d", id)
			}
			if tag == fieldString {
				fields[id] = string(row[:n])
			} else {
				fields[id] = append([]byte(nil), row[:n]...)
			}
			row = row[n:]
		default:
			return nil, fmt.Errorf("memengine: unknown field tag %d", tag)
		}
	}
	return fields, nil
}
