package vector

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb/geojson"
)

func columnTypeOf(t FieldType) flattypes.ColumnType {
	switch t {
	case FieldInteger:
		return flattypes.ColumnTypeLong
	case FieldReal:
		return flattypes.ColumnTypeDouble
	case FieldBool:
		return flattypes.ColumnTypeBool
	}
	return flattypes.ColumnTypeString
}

func fieldTypeOf(t flattypes.ColumnType) FieldType {
	switch t {
	case flattypes.ColumnTypeBool:
		return FieldBool
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte,
		flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort,
		flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt,
		flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		return FieldInteger
	case flattypes.ColumnTypeFloat, flattypes.ColumnTypeDouble:
		return FieldReal
	}
	return FieldString
}

// encodeProperties writes the non-null values of props in schema order as
// (uint16 column index, value) pairs, each value encoded by its field type.
func encodeProperties(props geojson.Properties, fields []Field) []byte {
	if len(props) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, fd := range fields {
		v, ok := props[fd.Name]
		if !ok || v == nil {
			continue
		}
		v, err := normalize(v, fd.Type)
		if err != nil {
			continue
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(i))
		switch fd.Type {
		case FieldInteger:
			_ = binary.Write(&buf, binary.LittleEndian, v.(int64))
		case FieldReal:
			_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(v.(float64)))
		case FieldBool:
			if v.(bool) {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		default:
			s := v.(string)
			_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
			buf.WriteString(s)
		}
	}
	return buf.Bytes()
}

// decodeProperties reads the property buffer of a feature. Values are
// returned as string, int64, float64 or bool; a malformed buffer keeps what
// was decoded before the error.
func decodeProperties(data []byte, h *flattypes.Header) geojson.Properties {
	props := make(geojson.Properties)
	for off := 0; off+2 <= len(data); {
		idx := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		var col flattypes.Column
		if idx >= h.ColumnsLength() || !h.Columns(&col, idx) {
			break
		}
		v, n := readValue(data[off:], col.Type())
		if n == 0 {
			break
		}
		off += n
		props[string(col.Name())] = v
	}
	return props
}

// columnSize is the encoded size of fixed-width column types.
var columnSize = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   1,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  1,
	flattypes.ColumnTypeShort:  2,
	flattypes.ColumnTypeUShort: 2,
	flattypes.ColumnTypeInt:    4,
	flattypes.ColumnTypeUInt:   4,
	flattypes.ColumnTypeFloat:  4,
	flattypes.ColumnTypeLong:   8,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeDouble: 8,
}

// readValue decodes one value and returns the number of bytes consumed, 0
// when data is too short.
func readValue(data []byte, t flattypes.ColumnType) (interface{}, int) {
	size := columnSize[t]
	if size == 0 {
		// String, Json, DateTime and Binary carry a uint32 length prefix.
		if len(data) < 4 {
			return nil, 0
		}
		n := int(binary.LittleEndian.Uint32(data))
		if len(data) < 4+n {
			return nil, 0
		}
		raw := data[4 : 4+n]
		if t == flattypes.ColumnTypeJson {
			var v interface{}
			if json.Unmarshal(raw, &v) == nil {
				if b, err := json.Marshal(v); err == nil {
					return string(b), 4 + n
				}
			}
		}
		return string(raw), 4 + n
	}
	if len(data) < size {
		return nil, 0
	}

	le := binary.LittleEndian
	switch t {
	case flattypes.ColumnTypeBool:
		return data[0] != 0, 1
	case flattypes.ColumnTypeByte:
		return int64(int8(data[0])), 1
	case flattypes.ColumnTypeUByte:
		return int64(data[0]), 1
	case flattypes.ColumnTypeShort:
		return int64(int16(le.Uint16(data))), 2
	case flattypes.ColumnTypeUShort:
		return int64(le.Uint16(data)), 2
	case flattypes.ColumnTypeInt:
		return int64(int32(le.Uint32(data))), 4
	case flattypes.ColumnTypeUInt:
		return int64(le.Uint32(data)), 4
	case flattypes.ColumnTypeFloat:
		return float64(math.Float32frombits(le.Uint32(data))), 4
	case flattypes.ColumnTypeLong:
		return int64(le.Uint64(data)), 8
	case flattypes.ColumnTypeULong:
		return int64(le.Uint64(data)), 8
	}
	return math.Float64frombits(le.Uint64(data)), 8
}
