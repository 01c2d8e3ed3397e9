// Package archive stores the set of invokers a process has built, so a
// later process can rebuild them before its first call.
//
// Archives are CBOR with canonical encoding: equal invoker sets produce
// identical bytes regardless of the order they were collected in.
package archive

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/mh-runtime/errors"
)

// Version is the archive format version written by this package.
const Version = 1

// Entry names one invoker: the descriptor of its target signature, its
// kind, and the access mode or leading argument count where the kind
// needs one.
type Entry struct {
	Descriptor string `cbor:"1,keyasint"`
	Kind       string `cbor:"2,keyasint"`
	Mode       string `cbor:"3,keyasint,omitempty"`
	Leading    int    `cbor:"4,keyasint,omitempty"`
}

func (e Entry) String() string {
	s := e.Kind + " " + e.Descriptor
	if e.Mode != "" {
		s += " " + e.Mode
	}
	if e.Leading != 0 {
		s += fmt.Sprintf(" leading=%d", e.Leading)
	}
	return s
}

func compareEntries(a, b Entry) int {
	if c := cmp.Compare(a.Descriptor, b.Descriptor); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Mode, b.Mode); c != 0 {
		return c
	}
	return cmp.Compare(a.Leading, b.Leading)
}

// Archive is a versioned, sorted set of entries.
type Archive struct {
	Version int     `cbor:"1,keyasint"`
	Entries []Entry `cbor:"2,keyasint"`
}

// New returns an archive of the given entries, sorted and without
// duplicates.
func New(entries []Entry) *Archive {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)
	sorted = slices.Compact(sorted)
	return &Archive{Version: Version, Entries: sorted}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("archive: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("archive: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Marshal encodes a.
func Marshal(a *Archive) ([]byte, error) {
	if a == nil {
		return nil, errors.InvalidInput(errors.PhaseArchive, "nil archive")
	}
	data, err := encMode.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseArchive, errors.KindInvalidData, err, "encode archive")
	}
	return data, nil
}

// Unmarshal decodes and validates an archive.
func Unmarshal(data []byte) (*Archive, error) {
	var a Archive
	if err := decMode.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(errors.PhaseArchive, errors.KindInvalidData, err, "decode archive")
	}
	if a.Version != Version {
		return nil, errors.New(errors.PhaseArchive, errors.KindUnsupported).
			Expected(fmt.Sprintf("version %d", Version)).
			Actual(fmt.Sprintf("version %d", a.Version)).
			Build()
	}
	for i, e := range a.Entries {
		if e.Descriptor == "" || e.Kind == "" {
			return nil, errors.InvalidData(errors.PhaseArchive, []string{"entries", fmt.Sprint(i)}, "entry without descriptor or kind")
		}
		if e.Leading < 0 {
			return nil, errors.InvalidData(errors.PhaseArchive, []string{"entries", fmt.Sprint(i)}, "negative leading argument count")
		}
	}
	return &a, nil
}

// Write encodes a to w.
func Write(w io.Writer, a *Archive) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "write archive")
	}
	return nil
}

// Read decodes an archive from r.
func Read(r io.Reader) (*Archive, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "read archive")
	}
	return Unmarshal(buf.Bytes())
}

// WriteFile writes a to path, replacing any existing file atomically.
func WriteFile(path string, a *Archive) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "create archive")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "write archive")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "write archive")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "replace archive")
	}
	return nil
}

// ReadFile reads the archive at path.
func ReadFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseArchive, "archive", path)
		}
		return nil, errors.Wrap(errors.PhaseArchive, errors.KindInternal, err, "read archive")
	}
	return Unmarshal(data)
}
