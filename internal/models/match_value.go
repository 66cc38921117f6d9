package models

import (
	"cmp"
	"encoding/json"
	"fmt"
)

// MatchKind is the state of a MatchValue
type MatchKind uint8

const (
	// MatchUnset means no value was computed, e.g. the comparison failed
	MatchUnset MatchKind = iota
	// MatchInvalid means there is no alignment for this value
	MatchInvalid
	// MatchValid means the value holds a numeric difference
	MatchValid
)

// String returns the JSON name of the kind
func (k MatchKind) String() string {
	switch k {
	case MatchInvalid:
		return "invalid"
	case MatchValid:
		return "valid"
	default:
		return "unset"
	}
}

// MatchValue is a geo difference which is either unset, invalid or a valid number.
// The zero value is unset.
type MatchValue struct {
	kind  MatchKind
	value int64
}

// UnsetMatch returns an unset value
func UnsetMatch() MatchValue { return MatchValue{} }

// InvalidMatch returns a value for "not available"
func InvalidMatch() MatchValue { return MatchValue{kind: MatchInvalid} }

// ValidMatch returns a numeric value
func ValidMatch(v int64) MatchValue { return MatchValue{kind: MatchValid, value: v} }

// Kind returns the state of the value
func (m MatchValue) Kind() MatchKind { return m.kind }

// IsValid reports whether the value holds a number
func (m MatchValue) IsValid() bool { return m.kind == MatchValid }

// Value returns the number and true when the value is valid
func (m MatchValue) Value() (int64, bool) {
	if m.kind != MatchValid {
		return 0, false
	}
	return m.value, true
}

func (m MatchValue) String() string {
	if m.kind == MatchValid {
		return fmt.Sprintf("%d", m.value)
	}
	return m.kind.String()
}

// CompareMatch orders values: valid ascending by magnitude, then invalid, then unset
func CompareMatch(a, b MatchValue) int {
	if a.kind == MatchValid && b.kind == MatchValid {
		return cmp.Compare(a.value, b.value)
	}
	return cmp.Compare(matchRank(a.kind), matchRank(b.kind))
}

func matchRank(k MatchKind) int {
	switch k {
	case MatchValid:
		return 0
	case MatchInvalid:
		return 1
	default:
		return 2
	}
}

type matchValueJSON struct {
	State string `json:"state"`
	Value *int64 `json:"value,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (m MatchValue) MarshalJSON() ([]byte, error) {
	out := matchValueJSON{State: m.kind.String()}
	if m.kind == MatchValid {
		v := m.value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *MatchValue) UnmarshalJSON(data []byte) error {
	var in matchValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.State {
	case "valid":
		if in.Value == nil {
			return fmt.Errorf("valid match value without value")
		}
		*m = ValidMatch(*in.Value)
	case "invalid":
		*m = InvalidMatch()
	case "unset", "":
		*m = UnsetMatch()
	default:
		return fmt.Errorf("unknown match state %q", in.State)
	}
	return nil
}
