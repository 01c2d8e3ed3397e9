package wasmlower

import (
	"github.com/tetratelabs/wazero/api"
)

// encodeULEB128 encodes an unsigned value in LEB128 format.
func encodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// encodeSLEB128 encodes a signed value in LEB128 format.
func encodeSLEB128(v int32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// decodeULEB128 decodes an unsigned LEB128 value and returns the number
// of bytes read.
func decodeULEB128(data []byte) (uint32, int) {
	var result uint32
	var shift uint32
	for i, b := range data {
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
		if shift > 35 {
			return result, i + 1
		}
	}
	return result, len(data)
}

func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

// appendSection appends a section with its id and size prefix.
func appendSection(wasm []byte, id byte, body []byte) []byte {
	wasm = append(wasm, id)
	wasm = append(wasm, encodeULEB128(uint32(len(body)))...)
	return append(wasm, body...)
}

func appendName(b []byte, name string) []byte {
	b = append(b, encodeULEB128(uint32(len(name)))...)
	return append(b, name...)
}

func appendFuncType(b []byte, params, results []api.ValueType) []byte {
	b = append(b, 0x60)
	b = append(b, encodeULEB128(uint32(len(params)))...)
	for _, t := range params {
		b = append(b, valType(t))
	}
	b = append(b, encodeULEB128(uint32(len(results)))...)
	for _, t := range results {
		b = append(b, valType(t))
	}
	return b
}
