package wasmlower

import (
	"github.com/tetratelabs/wazero/api"
)

const (
	hostModuleName = "mh"
	execName       = "exec"
	runName        = "run"
)

// Statuses returned by exec and run.
const (
	statusOK       = 0
	statusFailed   = 1
	statusBadFrame = 2
)

var (
	i32        = []api.ValueType{api.ValueTypeI32}
	execParams = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
)

// Opcodes used by the run function.
const (
	opIf       = 0x04
	opEnd      = 0x0b
	opReturn   = 0x0f
	opCall     = 0x10
	opLocalGet = 0x20
	opLocalTee = 0x22
	opI32Const = 0x41
	blockVoid  = 0x40
)

// moduleKey identifies the operation range [first, last) a run function
// executes.
type moduleKey struct {
	first uint32
	last  uint32
}

// buildRunModule returns a module importing mh.exec and exporting run,
// which calls exec(frame, i) for each i in [first, last) and returns the
// first non-zero status, or zero.
func buildRunModule(k moduleKey) []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Types: 0 = exec, 1 = run.
	var types []byte
	types = append(types, encodeULEB128(2)...)
	types = appendFuncType(types, execParams, i32)
	types = appendFuncType(types, i32, i32)
	wasm = appendSection(wasm, 0x01, types)

	var imports []byte
	imports = append(imports, encodeULEB128(1)...)
	imports = appendName(imports, hostModuleName)
	imports = appendName(imports, execName)
	imports = append(imports, 0x00, 0x00)
	wasm = appendSection(wasm, 0x02, imports)

	funcs := append(encodeULEB128(1), 0x01)
	wasm = appendSection(wasm, 0x03, funcs)

	var exports []byte
	exports = append(exports, encodeULEB128(1)...)
	exports = appendName(exports, runName)
	exports = append(exports, 0x00, 0x01)
	wasm = appendSection(wasm, 0x07, exports)

	body := buildRunBody(k)
	var code []byte
	code = append(code, encodeULEB128(1)...)
	code = append(code, encodeULEB128(uint32(len(body)))...)
	code = append(code, body...)
	return appendSection(wasm, 0x0a, code)
}

func buildRunBody(k moduleKey) []byte {
	// One i32 local holds the last status; local 0 is the frame.
	body := []byte{0x01, 0x01, 0x7f}
	for i := k.first; i < k.last; i++ {
		body = append(body, opLocalGet, 0x00)
		body = append(body, opI32Const)
		body = append(body, encodeSLEB128(int32(i))...)
		body = append(body, opCall, 0x00)
		body = append(body, opLocalTee, 0x01)
		body = append(body, opIf, blockVoid)
		body = append(body, opLocalGet, 0x01, opReturn)
		body = append(body, opEnd)
	}
	body = append(body, opI32Const, statusOK)
	return append(body, opEnd)
}
