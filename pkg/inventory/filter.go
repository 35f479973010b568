package inventory

import (
	"encoding/json"
	"slices"
	"strings"
)

// allSentinel is accepted in a supplier list as "no filter".
const allSentinel = "all"

// SupplierFilter restricts queries to SKUs whose current supplier is one of
// a set of display names. The zero value matches every supplier.
type SupplierFilter struct {
	names []string
}

// AllSuppliers is the filter that matches every supplier.
var AllSuppliers = SupplierFilter{}

// NewSupplierFilter builds a normalized filter: names are trimmed, empties
// dropped, duplicates removed and the result sorted. An empty list or a list
// containing "all" yields AllSuppliers.
func NewSupplierFilter(names ...string) SupplierFilter {
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if n == allSentinel {
			return AllSuppliers
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return AllSuppliers
	}
	slices.Sort(out)
	return SupplierFilter{names: slices.Compact(out)}
}

// IsAll reports whether the filter matches every supplier.
func (f SupplierFilter) IsAll() bool {
	return len(f.names) == 0
}

// Names returns a copy of the sorted supplier names.
func (f SupplierFilter) Names() []string {
	return slices.Clone(f.names)
}

// Key is the canonical encoding used in cache keys. Names are JSON encoded so
// separators inside a name cannot make two filters collide.
func (f SupplierFilter) Key() string {
	if f.IsAll() {
		return allSentinel
	}
	data, _ := json.Marshal(f.names)
	return string(data)
}

func (f SupplierFilter) String() string {
	if f.IsAll() {
		return allSentinel
	}
	return strings.Join(f.names, ",")
}
