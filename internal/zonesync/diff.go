package zonesync

// Diff is the set of mutations that makes the remote zone match the local one.
type Diff struct {
	ToAdd    []Record `json:"to_add" yaml:"to_add"`
	ToDelete []Record `json:"to_delete" yaml:"to_delete"`
}

// Empty reports whether the diff requires no API calls.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToDelete) == 0
}

// ComputeDiff compares local and remote records on every field except ID.
//
// A remote record with no local match is deleted and a local record with no
// remote match is added. The apex NS set and SOA belong to the provider: they
// are never deleted and never pushed, whatever their content. Additions keep
// local order and deletions keep remote order.
func ComputeDiff(local, remote []Record) Diff {
	localIndex := indexRecords(local)
	remoteIndex := indexRecords(remote)

	var diff Diff
	for _, rec := range remote {
		if _, ok := localIndex[rec.key()]; ok {
			continue
		}
		if rec.IsProviderManaged() {
			continue
		}
		diff.ToDelete = append(diff.ToDelete, rec)
	}

	queued := make(map[recordKey]struct{})
	for _, rec := range local {
		key := rec.key()
		if _, ok := remoteIndex[key]; ok {
			continue
		}
		if rec.IsProviderManaged() {
			continue
		}
		if _, dup := queued[key]; dup {
			continue
		}
		queued[key] = struct{}{}
		rec.ID = ""
		diff.ToAdd = append(diff.ToAdd, rec)
	}
	return diff
}

func indexRecords(records []Record) map[recordKey]struct{} {
	index := make(map[recordKey]struct{}, len(records))
	for _, rec := range records {
		index[rec.key()] = struct{}{}
	}
	return index
}
