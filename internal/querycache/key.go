package querycache

import (
	"strings"
	"time"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Query kinds used as the first key component and as the metrics label.
const (
	KindDiff        = "diff"
	KindRange       = "range"
	KindDates       = "dates"
	KindSuppliers   = "suppliers"
	KindBrokers     = "brokers"
	KindSKUs        = "skus"
	KindTotals      = "totals"
	KindBrandTrends = "brand_trends"
)

// Key identifies a cached result. Build keys with the constructors below so
// that equivalent queries always produce the same key.
type Key struct {
	Kind  string
	parts []string
}

// String renders the key as kind:part:part...
func (k Key) String() string {
	return strings.Join(append([]string{k.Kind}, k.parts...), ":")
}

// NewKey builds a key from already-canonical parts.
func NewKey(kind string, parts ...string) Key {
	return Key{Kind: kind, parts: parts}
}

// DiffKey is the key of a diff between date1 and date2.
func DiffKey(date1, date2 time.Time, filter inventory.SupplierFilter) Key {
	return NewKey(KindDiff, inventory.FormatDate(date1), inventory.FormatDate(date2), filter.Key())
}

// RangeKey is the key of a range query over [start, end].
func RangeKey(start, end time.Time, filter inventory.SupplierFilter) Key {
	return NewKey(KindRange, inventory.FormatDate(start), inventory.FormatDate(end), filter.Key())
}
