// Package witsig maps WIT function signatures onto method types so that
// component-model functions can be bound as handles.
package witsig

import (
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// FieldType returns the field type a WIT value type is carried as.
func FieldType(t wit.Type, path ...string) (mtype.Type, error) {
	switch v := t.(type) {
	case wit.Bool:
		return mtype.Boolean, nil
	case wit.U8, wit.S8:
		return mtype.Byte, nil
	case wit.U16, wit.S16:
		return mtype.Short, nil
	case wit.U32, wit.S32:
		return mtype.Int, nil
	case wit.U64, wit.S64:
		return mtype.Long, nil
	case wit.F32:
		return mtype.Float, nil
	case wit.F64:
		return mtype.Double, nil
	case wit.Char:
		return mtype.Char, nil
	case wit.String:
		return mtype.String, nil
	case *wit.TypeDef:
		return typeDefType(v, path)
	default:
		return mtype.Type{}, errors.New(errors.PhaseParse, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported WIT type: %T", t).
			Build()
	}
}

func typeDefType(td *wit.TypeDef, path []string) (mtype.Type, error) {
	if list, ok := td.Kind.(*wit.List); ok {
		elem, err := FieldType(list.Type, append(path, "list")...)
		if err != nil {
			return mtype.Type{}, err
		}
		return mtype.ArrayOf(elem), nil
	}
	if td.Name != nil && *td.Name != "" {
		return mtype.ClassType(className(*td.Name)), nil
	}
	if alias, ok := td.Kind.(wit.Type); ok {
		return FieldType(alias, path...)
	}
	return mtype.Object, nil
}

// className turns a kebab-case WIT name into a class name.
func className(name string) string {
	parts := strings.Split(name, "-")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// MethodType builds the method type of a WIT function from its parameter
// and result types. No results map to void, one result to its type, and
// several results to Object[].
func MethodType(tab *mtype.Table, params, results []wit.Type) (*mtype.MethodType, error) {
	ptypes := make([]mtype.Type, len(params))
	for i, p := range params {
		t, err := FieldType(p, "param", strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		ptypes[i] = t
	}

	ret := mtype.Void
	switch len(results) {
	case 0:
	case 1:
		t, err := FieldType(results[0], "result")
		if err != nil {
			return nil, err
		}
		ret = t
	default:
		ret = mtype.ObjectArray
	}
	return tab.Make(ret, ptypes...)
}

// Parse builds a method type from WIT type text, one entry per
// parameter and result, e.g. Parse(tab, []string{"u32", "string"}, []string{"u64"}).
func Parse(tab *mtype.Table, params, results []string) (*mtype.MethodType, error) {
	pts, err := parseAll(params)
	if err != nil {
		return nil, err
	}
	rts, err := parseAll(results)
	if err != nil {
		return nil, err
	}
	return MethodType(tab, pts, rts)
}

func parseAll(src []string) ([]wit.Type, error) {
	out := make([]wit.Type, len(src))
	for i, s := range src {
		t, err := ParseType(s)
		if err != nil {
			return nil, errors.ParseFailed("WIT type "+strconv.Quote(s), err)
		}
		out[i] = t
	}
	return out, nil
}

// ParseType parses one WIT type. wit.ParseType only knows primitives, so
// list<T> is unwrapped here, recursively for nested lists.
func ParseType(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutPrefix(s, "list<"); ok {
		inner, ok = strings.CutSuffix(inner, ">")
		if !ok {
			return nil, errors.InvalidData(errors.PhaseParse, nil, "unterminated list type "+strconv.Quote(s))
		}
		elem, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	}
	return wit.ParseType(s)
}
