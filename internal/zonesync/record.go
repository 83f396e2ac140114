package zonesync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TypeCode is the provider's numeric identifier for a record type.
type TypeCode int

const (
	CodeA        TypeCode = 0
	CodeAAAA     TypeCode = 1
	CodeCNAME    TypeCode = 2
	CodeTXT      TypeCode = 3
	CodeMX       TypeCode = 4
	CodeRedirect TypeCode = 5
	CodeFlatten  TypeCode = 6
	CodePullZone TypeCode = 7
	CodeSRV      TypeCode = 8
	CodeCAA      TypeCode = 9
	CodePTR      TypeCode = 10
	CodeScript   TypeCode = 11
	CodeNS       TypeCode = 12
	// CodeSOA is a pseudo code. The provider manages SOA itself and never stores one.
	CodeSOA TypeCode = 99
)

var typeNames = map[TypeCode]string{
	CodeA:        "A",
	CodeAAAA:     "AAAA",
	CodeCNAME:    "CNAME",
	CodeTXT:      "TXT",
	CodeMX:       "MX",
	CodeRedirect: "Redirect",
	CodeFlatten:  "Flatten",
	CodePullZone: "PullZone",
	CodeSRV:      "SRV",
	CodeCAA:      "CAA",
	CodePTR:      "PTR",
	CodeScript:   "Script",
	CodeNS:       "NS",
	CodeSOA:      "SOA",
}

var typeCodes = func() map[string]TypeCode {
	codes := make(map[string]TypeCode, len(typeNames))
	for code, name := range typeNames {
		codes[name] = code
	}
	return codes
}()

// RecordType is either a known provider type code or a textual type that has
// no entry in the type table. The two variants never compare equal.
type RecordType struct {
	code     TypeCode
	text     string
	unmapped bool
}

// Known returns the RecordType for a provider type code.
func Known(code TypeCode) RecordType {
	return RecordType{code: code}
}

// Unmapped returns a RecordType that carries a textual type verbatim.
func Unmapped(text string) RecordType {
	return RecordType{text: text, unmapped: true}
}

// ParseType maps a textual record type (as printed by a zone transfer) to its
// provider code. Lookup is exact; unknown types are returned as Unmapped.
func ParseType(text string) RecordType {
	if code, ok := typeCodes[text]; ok {
		return Known(code)
	}
	return Unmapped(text)
}

// Code returns the provider code and whether the type is mapped.
func (t RecordType) Code() (TypeCode, bool) {
	if t.unmapped {
		return 0, false
	}
	return t.code, true
}

// Is reports whether t is the known type code.
func (t RecordType) Is(code TypeCode) bool {
	return !t.unmapped && t.code == code
}

func (t RecordType) IsUnmapped() bool { return t.unmapped }

func (t RecordType) String() string {
	if t.unmapped {
		return t.text
	}
	if name, ok := typeNames[t.code]; ok {
		return name
	}
	return "TYPE" + strconv.Itoa(int(t.code))
}

func (t RecordType) MarshalJSON() ([]byte, error) {
	if t.unmapped {
		return json.Marshal(t.text)
	}
	return json.Marshal(int(t.code))
}

func (t *RecordType) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		*t = Known(TypeCode(code))
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("record type must be a number or string: %w", err)
	}
	*t = ParseType(text)
	return nil
}

func (t RecordType) MarshalYAML() (any, error) {
	if t.unmapped {
		return t.text, nil
	}
	return int(t.code), nil
}

func (t *RecordType) UnmarshalYAML(node *yaml.Node) error {
	if node.ShortTag() == "!!int" {
		code, err := strconv.Atoi(node.Value)
		if err != nil {
			return err
		}
		*t = Known(TypeCode(code))
		return nil
	}
	*t = ParseType(node.Value)
	return nil
}

// Record is the canonical, comparable form of a DNS resource record.
// ID is only set on records read from the provider and is never compared.
type Record struct {
	ID       string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string     `json:"name" yaml:"name"`
	TTL      int        `json:"ttl" yaml:"ttl"`
	Type     RecordType `json:"type" yaml:"type"`
	Value    string     `json:"value" yaml:"value"`
	Priority *int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Weight   *int       `json:"weight,omitempty" yaml:"weight,omitempty"`
	Port     *int       `json:"port,omitempty" yaml:"port,omitempty"`
}

type optInt struct {
	set bool
	v   int
}

func optional(p *int) optInt {
	if p == nil {
		return optInt{}
	}
	return optInt{set: true, v: *p}
}

// recordKey holds every field of a Record except ID.
type recordKey struct {
	name     string
	ttl      int
	typ      RecordType
	value    string
	priority optInt
	weight   optInt
	port     optInt
}

func (r Record) key() recordKey {
	return recordKey{
		name:     r.Name,
		ttl:      r.TTL,
		typ:      r.Type,
		value:    r.Value,
		priority: optional(r.Priority),
		weight:   optional(r.Weight),
		port:     optional(r.Port),
	}
}

// Equal compares two records on every field except ID.
func (r Record) Equal(other Record) bool {
	return r.key() == other.key()
}

// IsProviderManaged reports whether the provider owns the record: the apex NS
// set and SOA are never created or deleted by a sync.
func (r Record) IsProviderManaged() bool {
	return (r.Name == "" && r.Type.Is(CodeNS)) || r.Type.Is(CodeSOA)
}

func (r Record) String() string {
	name := r.Name
	if name == "" {
		name = "@"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %s", name, r.TTL, r.Type)
	if r.Priority != nil {
		fmt.Fprintf(&b, " %d", *r.Priority)
	}
	if r.Weight != nil {
		fmt.Fprintf(&b, " %d", *r.Weight)
	}
	if r.Port != nil {
		fmt.Fprintf(&b, " %d", *r.Port)
	}
	b.WriteString(" ")
	b.WriteString(r.Value)
	return b.String()
}

// RemoteRecord is a record as returned by a provider's list call, before
// normalization. A nil TTL means the provider omitted it.
type RemoteRecord struct {
	ID       string
	Name     string
	TTL      *int
	Type     TypeCode
	Value    string
	Priority *int
	Weight   *int
	Port     *int
}

// IntPtr is a convenience for building records with optional fields.
func IntPtr(v int) *int { return &v }
