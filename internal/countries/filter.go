package countries

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AnyValue disables a region or language filter.
const AnyValue = "All"

// Country holds the fields of an upstream country record that the API
// filters on. The full record is always passed through unchanged.
type Country struct {
	Name struct {
		Common   string `json:"common"`
		Official string `json:"official"`
	} `json:"name"`
	CCA3      string            `json:"cca3"`
	Region    string            `json:"region"`
	Languages map[string]string `json:"languages"`
}

// FilterOptions narrows a country list. Empty or "All" values match everything.
type FilterOptions struct {
	Search   string
	Region   string
	Language string
}

type record struct {
	raw     json.RawMessage
	country Country
}

func decodeList(payload json.RawMessage) ([]record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(payload, &raws); err != nil {
		return nil, fmt.Errorf("decode country list: %w", err)
	}
	records := make([]record, 0, len(raws))
	for _, raw := range raws {
		var country Country
		if err := json.Unmarshal(raw, &country); err != nil {
			return nil, fmt.Errorf("decode country: %w", err)
		}
		records = append(records, record{raw: raw, country: country})
	}
	return records, nil
}

func encodeList(records []record) json.RawMessage {
	raws := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		raws = append(raws, r.raw)
	}
	out, _ := json.Marshal(raws)
	return out
}

func isAny(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.EqualFold(value, AnyValue)
}

// Filter keeps the countries whose common name contains Search
// (case-insensitive), whose region equals Region and which speak Language.
func Filter(payload json.RawMessage, opts FilterOptions) (json.RawMessage, error) {
	records, err := decodeList(payload)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	kept := records[:0]
	for _, r := range records {
		if search != "" && !strings.Contains(strings.ToLower(r.country.Name.Common), search) {
			continue
		}
		if !isAny(opts.Region) && r.country.Region != strings.TrimSpace(opts.Region) {
			continue
		}
		if !isAny(opts.Language) && !speaks(r.country, strings.TrimSpace(opts.Language)) {
			continue
		}
		kept = append(kept, r)
	}
	return encodeList(kept), nil
}

func speaks(country Country, language string) bool {
	for _, name := range country.Languages {
		if name == language {
			return true
		}
	}
	return false
}

// Languages returns the sorted, de-duplicated language names in payload.
func Languages(payload json.RawMessage) ([]string, error) {
	records, err := decodeList(payload)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, name := range r.country.Languages {
			seen[name] = struct{}{}
		}
	}
	languages := make([]string, 0, len(seen))
	for name := range seen {
		languages = append(languages, name)
	}
	sort.Strings(languages)
	return languages, nil
}

// SelectByCodes keeps the countries whose cca3 code is in codes, in payload order.
func SelectByCodes(payload json.RawMessage, codes []string) (json.RawMessage, error) {
	records, err := decodeList(payload)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		wanted[strings.ToUpper(code)] = struct{}{}
	}
	kept := records[:0]
	for _, r := range records {
		if _, ok := wanted[strings.ToUpper(r.country.CCA3)]; ok {
			kept = append(kept, r)
		}
	}
	return encodeList(kept), nil
}
