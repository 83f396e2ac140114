package zonesync

import "testing"

func TestNormalizeLocal(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Record
	}{
		{
			name: "apex A",
			line: "example.com.\t300\tIN\tA\t1.2.3.4",
			want: &Record{Name: "", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"},
		},
		{
			name: "relative name",
			line: "www.example.com. 300 IN A 1.2.3.4",
			want: &Record{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"},
		},
		{
			name: "cname trailing dot stripped",
			line: "blog.example.com. 3600 IN CNAME host.example.net.",
			want: &Record{Name: "blog", TTL: 3600, Type: Known(CodeCNAME), Value: "host.example.net"},
		},
		{
			name: "mx priority split",
			line: "example.com. 3600 IN MX 10 mail.example.com.",
			want: &Record{TTL: 3600, Type: Known(CodeMX), Value: "mail.example.com", Priority: IntPtr(10)},
		},
		{
			name: "srv fields split",
			line: "_sip._tcp.example.com. 600 IN SRV 10 20 5060 sip.example.com.",
			want: &Record{Name: "_sip._tcp", TTL: 600, Type: Known(CodeSRV), Value: "sip.example.com",
				Priority: IntPtr(10), Weight: IntPtr(20), Port: IntPtr(5060)},
		},
		{
			name: "txt quotes stripped",
			line: `example.com. 300 IN TXT "v=spf1 -all"`,
			want: &Record{TTL: 300, Type: Known(CodeTXT), Value: "v=spf1 -all"},
		},
		{
			name: "txt single quotes stripped",
			line: `example.com. 300 IN TXT 'hello'`,
			want: &Record{TTL: 300, Type: Known(CodeTXT), Value: "hello"},
		},
		{
			name: "unmapped type kept",
			line: "example.com. 300 IN HINFO \"cpu\" \"os\"",
			want: &Record{TTL: 300, Type: Unmapped("HINFO"), Value: `"cpu" "os"`},
		},
		{
			name: "soa normalized",
			line: "example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600",
			want: &Record{TTL: 3600, Type: Known(CodeSOA), Value: "ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600"},
		},
		{name: "comment", line: "; <<>> DiG 9.18 <<>> axfr example.com", want: nil},
		{name: "blank", line: "", want: nil},
		{name: "too few fields", line: "example.com. 300 IN A", want: nil},
		{name: "bad ttl", line: "example.com. abc IN A 1.2.3.4", want: nil},
		{name: "bad mx priority", line: "example.com. 300 IN MX ten mail.example.com.", want: nil},
		{name: "short srv", line: "_sip._tcp.example.com. 600 IN SRV 10 20", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLocal([]string{tt.line}, "example.com")
			if tt.want == nil {
				if len(got) != 0 {
					t.Fatalf("expected line to be skipped, got %v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected one record, got %d", len(got))
			}
			if !got[0].Equal(*tt.want) {
				t.Fatalf("got %q, want %q", got[0].String(), tt.want.String())
			}
		})
	}
}

func TestNormalizeLocalAcceptsFQDNZone(t *testing.T) {
	got := NormalizeLocal([]string{"www.example.com. 60 IN A 1.1.1.1"}, "example.com.")
	if len(got) != 1 || got[0].Name != "www" {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestNormalizeUnmappedNeverCollides(t *testing.T) {
	for code, name := range typeNames {
		unmapped := NormalizeLocal([]string{"x.example.com. 60 IN X" + name + " data"}, "example.com")
		if len(unmapped) != 1 {
			t.Fatalf("expected one record for X%s", name)
		}
		if unmapped[0].Type.Is(code) || unmapped[0].Type == Known(code) {
			t.Fatalf("unmapped type X%s collides with code %d", name, code)
		}
		if !unmapped[0].Type.IsUnmapped() {
			t.Fatalf("expected X%s to be unmapped", name)
		}
	}
}

func TestNormalizeRemote(t *testing.T) {
	raw := []RemoteRecord{
		{ID: "1", Name: "www", TTL: IntPtr(300), Type: CodeA, Value: "1.2.3.4", Priority: IntPtr(5)},
		{ID: "2", Name: "", Type: CodeMX, Value: "mail.example.com", Priority: IntPtr(10), Weight: IntPtr(1)},
		{ID: "3", Name: "_sip._tcp", TTL: IntPtr(600), Type: CodeSRV, Value: "sip.example.com",
			Priority: IntPtr(10), Weight: IntPtr(20), Port: IntPtr(5060)},
	}
	got := NormalizeRemote(raw)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Priority != nil {
		t.Fatalf("priority must only be kept for MX and SRV")
	}
	if got[1].TTL != 0 {
		t.Fatalf("missing ttl should default to 0, got %d", got[1].TTL)
	}
	if got[1].Priority == nil || *got[1].Priority != 10 || got[1].Weight != nil {
		t.Fatalf("unexpected MX fields: %v", got[1])
	}
	if got[2].Port == nil || *got[2].Port != 5060 {
		t.Fatalf("unexpected SRV fields: %v", got[2])
	}
	if got[0].ID != "1" {
		t.Fatalf("expected id to be carried, got %q", got[0].ID)
	}
}

func TestLocalAndRemoteRoundTrip(t *testing.T) {
	local := NormalizeLocal([]string{
		"www.example.com. 300 IN A 1.2.3.4",
		"example.com. 3600 IN MX 10 mail.example.com.",
		`example.com. 300 IN TXT "hello world"`,
	}, "example.com")
	remote := NormalizeRemote([]RemoteRecord{
		{ID: "11", Name: "www", TTL: IntPtr(300), Type: CodeA, Value: "1.2.3.4"},
		{ID: "12", Name: "", TTL: IntPtr(3600), Type: CodeMX, Value: "mail.example.com", Priority: IntPtr(10)},
		{ID: "13", Name: "", TTL: IntPtr(300), Type: CodeTXT, Value: "hello world"},
	})
	if len(local) != len(remote) {
		t.Fatalf("length mismatch: %d vs %d", len(local), len(remote))
	}
	for i := range local {
		if !local[i].Equal(remote[i]) {
			t.Fatalf("record %d differs: %q vs %q", i, local[i].String(), remote[i].String())
		}
	}
}
