package zonesync

import "testing"

func TestComputeDiffIdempotent(t *testing.T) {
	records := []Record{
		{Name: "", TTL: 3600, Type: Known(CodeNS), Value: "ns1.example.com"},
		{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"},
		{Name: "", TTL: 300, Type: Known(CodeMX), Value: "mail.example.com", Priority: IntPtr(10)},
		{Name: "x", TTL: 300, Type: Unmapped("HINFO"), Value: "a b"},
	}
	diff := ComputeDiff(records, records)
	if !diff.Empty() {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
}

func TestComputeDiffIgnoresIDs(t *testing.T) {
	local := []Record{{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}}
	remote := []Record{{ID: "42", Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}}
	if diff := ComputeDiff(local, remote); !diff.Empty() {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
}

func TestComputeDiffAddsMissing(t *testing.T) {
	local := []Record{{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}}
	diff := ComputeDiff(local, nil)
	if len(diff.ToAdd) != 1 || len(diff.ToDelete) != 0 {
		t.Fatalf("unexpected diff: %+v", diff)
	}
	want := Record{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}
	if !diff.ToAdd[0].Equal(want) {
		t.Fatalf("got %q, want %q", diff.ToAdd[0].String(), want.String())
	}
}

func TestComputeDiffDeletesExtra(t *testing.T) {
	remote := []Record{{ID: "7", Name: "old", Type: Known(CodeA), Value: "9.9.9.9"}}
	diff := ComputeDiff(nil, remote)
	if len(diff.ToDelete) != 1 || diff.ToDelete[0].ID != "7" {
		t.Fatalf("expected record 7 to be deleted, got %+v", diff)
	}
}

func TestComputeDiffProviderManaged(t *testing.T) {
	tests := []struct {
		name       string
		local      []Record
		remote     []Record
		wantAdd    int
		wantDelete int
	}{
		{
			name:   "remote apex NS kept",
			remote: []Record{{ID: "1", Name: "", TTL: 3600, Type: Known(CodeNS), Value: "kiki.bunny.net"}},
		},
		{
			name:   "remote SOA kept",
			remote: []Record{{ID: "2", Name: "sub", Type: Known(CodeSOA), Value: "x"}},
		},
		{
			name:  "local apex NS not pushed",
			local: []Record{{Name: "", TTL: 3600, Type: Known(CodeNS), Value: "ns1.example.com"}},
		},
		{
			name:  "local SOA not pushed",
			local: []Record{{Name: "", TTL: 3600, Type: Known(CodeSOA), Value: "ns1 hostmaster 1 2 3 4 5"}},
		},
		{
			name:       "delegation NS is synced",
			local:      []Record{{Name: "sub", TTL: 3600, Type: Known(CodeNS), Value: "ns.other.net"}},
			remote:     []Record{{ID: "3", Name: "sub", TTL: 3600, Type: Known(CodeNS), Value: "ns.old.net"}},
			wantAdd:    1,
			wantDelete: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := ComputeDiff(tt.local, tt.remote)
			if len(diff.ToAdd) != tt.wantAdd || len(diff.ToDelete) != tt.wantDelete {
				t.Fatalf("got %d adds and %d deletes, want %d and %d", len(diff.ToAdd), len(diff.ToDelete), tt.wantAdd, tt.wantDelete)
			}
		})
	}
}

func TestComputeDiffUpdateIsDeletePlusAdd(t *testing.T) {
	local := []Record{{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.5"}}
	remote := []Record{{ID: "9", Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}}
	diff := ComputeDiff(local, remote)
	if len(diff.ToAdd) != 1 || len(diff.ToDelete) != 1 {
		t.Fatalf("unexpected diff: %+v", diff)
	}
	if diff.ToDelete[0].ID != "9" || diff.ToAdd[0].Value != "1.2.3.5" {
		t.Fatalf("unexpected diff: %+v", diff)
	}
}

func TestComputeDiffDeduplicatesAdds(t *testing.T) {
	rec := Record{Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}
	diff := ComputeDiff([]Record{rec, rec}, nil)
	if len(diff.ToAdd) != 1 {
		t.Fatalf("expected duplicate local records to be added once, got %d", len(diff.ToAdd))
	}
}

func TestComputeDiffOptionalFields(t *testing.T) {
	local := []Record{{Name: "", TTL: 300, Type: Known(CodeMX), Value: "mail", Priority: IntPtr(0)}}
	remote := []Record{{ID: "1", Name: "", TTL: 300, Type: Known(CodeMX), Value: "mail"}}
	diff := ComputeDiff(local, remote)
	if len(diff.ToAdd) != 1 || len(diff.ToDelete) != 1 {
		t.Fatalf("a zero priority must differ from a missing one: %+v", diff)
	}
}

func TestComputeDiffCaseSensitive(t *testing.T) {
	local := []Record{{Name: "WWW", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}}
	remote := []Record{{ID: "1", Name: "www", TTL: 300, Type: Known(CodeA), Value: "1.2.3.4"}}
	diff := ComputeDiff(local, remote)
	if diff.Empty() {
		t.Fatalf("expected case-sensitive comparison to produce changes")
	}
}
