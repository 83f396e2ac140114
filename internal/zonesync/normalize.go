package zonesync

import (
	"strconv"
	"strings"
)

// commentPrefix marks zone transfer lines that are not records (dig prints
// its headers and statistics this way).
const commentPrefix = ";"

// minRecordFields is name, ttl, class, type and at least one rdata token.
const minRecordFields = 5

// NormalizeLocal converts zone transfer output into canonical records.
// Lines that are comments, too short or carry unparsable numeric fields are
// skipped without error.
func NormalizeLocal(lines []string, zone string) []Record {
	suffix := strings.TrimSuffix(zone, ".") + "."
	var records []Record
	for _, line := range lines {
		rec, ok := parseTransferLine(line, suffix)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func parseTransferLine(line, zoneSuffix string) (Record, bool) {
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return Record{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < minRecordFields {
		return Record{}, false
	}
	ttl, err := strconv.Atoi(fields[1])
	if err != nil || ttl < 0 {
		return Record{}, false
	}

	textType := fields[3]
	rdata := fields[4:]
	rec := Record{
		Name: relativeName(fields[0], zoneSuffix),
		TTL:  ttl,
		Type: ParseType(textType),
	}

	switch textType {
	case "MX":
		priority, err := strconv.Atoi(rdata[0])
		if err != nil {
			return Record{}, false
		}
		rec.Priority = IntPtr(priority)
		rdata = rdata[1:]
	case "SRV":
		if len(rdata) < 3 {
			return Record{}, false
		}
		var nums [3]int
		for i := range nums {
			n, err := strconv.Atoi(rdata[i])
			if err != nil {
				return Record{}, false
			}
			nums[i] = n
		}
		rec.Priority, rec.Weight, rec.Port = IntPtr(nums[0]), IntPtr(nums[1]), IntPtr(nums[2])
		rdata = rdata[3:]
	}

	value := strings.Join(rdata, " ")
	value = strings.TrimSuffix(value, ".")
	if rec.Type.Is(CodeTXT) {
		value = unquote(value)
	}
	rec.Value = value
	return rec, true
}

// relativeName strips the zone suffix and any trailing dot, so the apex
// becomes the empty string.
func relativeName(name, zoneSuffix string) string {
	name = strings.TrimSuffix(name, zoneSuffix)
	return strings.TrimSuffix(name, ".")
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if first == last && (first == '"' || first == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

// NormalizeRemote converts provider records into canonical records. Priority
// is kept only for MX, and priority, weight and port only for SRV.
func NormalizeRemote(raw []RemoteRecord) []Record {
	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		rec := Record{
			ID:    r.ID,
			Name:  r.Name,
			Type:  Known(r.Type),
			Value: r.Value,
		}
		if r.TTL != nil {
			rec.TTL = *r.TTL
		}
		switch r.Type {
		case CodeMX:
			rec.Priority = copyInt(r.Priority)
		case CodeSRV:
			rec.Priority = copyInt(r.Priority)
			rec.Weight = copyInt(r.Weight)
			rec.Port = copyInt(r.Port)
		}
		records = append(records, rec)
	}
	return records
}

func copyInt(val *int) *int {
	if val == nil {
		return nil
	}
	v := *val
	return &v
}
