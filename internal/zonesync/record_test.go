package zonesync

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		text     string
		code     TypeCode
		unmapped bool
	}{
		{text: "A", code: CodeA},
		{text: "AAAA", code: CodeAAAA},
		{text: "SRV", code: CodeSRV},
		{text: "NS", code: CodeNS},
		{text: "SOA", code: CodeSOA},
		{text: "a", unmapped: true},
		{text: "HINFO", unmapped: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ParseType(tt.text)
			if got.IsUnmapped() != tt.unmapped {
				t.Fatalf("unmapped = %v, want %v", got.IsUnmapped(), tt.unmapped)
			}
			if tt.unmapped {
				if got.String() != tt.text {
					t.Fatalf("expected text to be preserved, got %q", got.String())
				}
				return
			}
			if code, ok := got.Code(); !ok || code != tt.code {
				t.Fatalf("code = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestRecordTypeEncoding(t *testing.T) {
	rec := Record{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}
	other := Record{Name: "x", TTL: 300, Type: Unmapped("HINFO"), Value: "a"}

	data, err := json.Marshal([]Record{rec, other})
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	var decoded []Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if !decoded[0].Equal(rec) || !decoded[1].Equal(other) {
		t.Fatalf("json round trip mismatch: %s", data)
	}

	out, err := yaml.Marshal([]Record{rec, other})
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	decoded = nil
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if !decoded[0].Equal(rec) || !decoded[1].Equal(other) {
		t.Fatalf("yaml round trip mismatch:\n%s", out)
	}
}

func TestRecordString(t *testing.T) {
	rec := Record{Name: "", TTL: 3600, Type: Known(CodeMX), Value: "mail.example.com", Priority: IntPtr(10)}
	if got, want := rec.String(), "@ 3600 MX 10 mail.example.com"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := Known(TypeCode(42)).String(); got != "TYPE42" {
		t.Fatalf("unexpected name for unknown code: %q", got)
	}
}
