package asn1

import (
	"fmt"

	"github.com/tlssak/scanner/pkg/stream"
)

// FieldSpec describes one SEQUENCE/SET member for ParseSequence.
//
// A field with Context < 0 is matched by its Universal tag in the
// UNIVERSAL class, exactly as written in the grammar (e.g. an INTEGER
// version field). A field with Context >= 0 is a context-tagged element:
// Explicit wraps the real element in its own constructed context TLV
// (decode twice); implicit (Explicit == false) replaces the inner tag with
// the context tag outright, so Constructed must say whether the
// underlying type is itself constructed (SEQUENCE, SET, constructed
// strings) or primitive.
type FieldSpec struct {
	Name        string
	Universal   int
	Context     int
	Explicit    bool
	Constructed bool
	Optional    bool
	HasDefault  bool
}

func (f FieldSpec) expectedIdentifier() Identifier {
	if f.Context < 0 {
		return Identifier{Class: ClassUniversal, Constructed: f.Constructed, Tag: f.Universal}
	}
	if f.Explicit {
		return Identifier{Class: ClassContextSpecific, Constructed: true, Tag: f.Context}
	}
	return Identifier{Class: ClassContextSpecific, Constructed: f.Constructed, Tag: f.Context}
}

// ParseSequence decodes content (the content octets of a SEQUENCE or SET
// element) against fields, in order. Optional fields that aren't present
// are simply absent from the result map; a required field that's missing,
// or present fields out of order, is an error. Trailing content after the
// last field is ignored, since X.509 relies on exactly this to let newer
// extensions appear in older parsers without breaking them.
func ParseSequence(content []byte, fields []FieldSpec) (map[string]*Element, error) {
	s := stream.NewSlice(content)
	m := stream.NewMarkable(s)
	result := make(map[string]*Element, len(fields))

	for _, f := range fields {
		if !m.More() {
			if f.Optional {
				continue
			}
			return nil, fmt.Errorf("asn1: sequence missing required field %q", f.Name)
		}

		if err := m.Mark(); err != nil {
			return nil, err
		}

		elem, err := ReadElement(m)
		if err != nil {
			return nil, fmt.Errorf("asn1: sequence field %q: %w", f.Name, err)
		}

		if elem.Identifier != f.expectedIdentifier() {
			if f.Optional || f.HasDefault {
				if err := m.Restore(); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("asn1: sequence field %q: got %s, want %s", f.Name, elem.Identifier, f.expectedIdentifier())
		}
		if err := m.Commit(); err != nil {
			return nil, err
		}

		if f.Context >= 0 && f.Explicit {
			inner, err := ReadElement(stream.NewSlice(elem.Content))
			if err != nil {
				return nil, fmt.Errorf("asn1: sequence field %q: unwrapping explicit tag: %w", f.Name, err)
			}
			result[f.Name] = inner
		} else {
			result[f.Name] = elem
		}
	}
	return result, nil
}

// ParseRepeated decodes content as a homogeneous run of elements, for
// SEQUENCE OF / SET OF constructs.
func ParseRepeated(content []byte) ([]*Element, error) {
	s := stream.NewSlice(content)
	var elems []*Element
	for s.More() {
		e, err := ReadElement(s)
		if err != nil {
			return nil, fmt.Errorf("asn1: repeated element %d: %w", len(elems), err)
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// ChoiceArm is one alternative of a CHOICE type: Match reports whether a
// decoded identifier belongs to this arm.
type ChoiceArm struct {
	Name  string
	Match func(Identifier) bool
}

// ParseChoice reads exactly one element from s and returns the index of
// the first arm whose Match accepts its identifier (first-match-wins,
// mirroring how a CHOICE is resolved by trial). If no arm matches, an error
// is returned and no element; the element has already been read from s,
// and s is not rewound.
func ParseChoice(s stream.Stream, arms []ChoiceArm) (int, *Element, error) {
	m := stream.NewMarkable(s)
	if err := m.Mark(); err != nil {
		return -1, nil, err
	}

	elem, err := ReadElement(m)
	if err != nil {
		_ = m.Restore()
		return -1, nil, fmt.Errorf("asn1: choice: %w", err)
	}

	for i, arm := range arms {
		if arm.Match(elem.Identifier) {
			if err := m.Commit(); err != nil {
				return -1, nil, err
			}
			return i, elem, nil
		}
	}

	_ = m.Restore()
	return -1, nil, fmt.Errorf("asn1: choice: no arm matched %s", elem.Identifier)
}
