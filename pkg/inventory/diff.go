package inventory

import (
	"math"
	"sort"
)

// PercentageChange returns |q2-q1| / (q1+1) * 100.
//
// The +1 keeps a zero baseline from dividing by zero. It is not a true
// percentage near zero: 0 -> 5 reports 500%, and small baselines are
// understated (10 -> 8 reports 18.18% rather than 20%).
func PercentageChange(q1, q2 int) float64 {
	return math.Abs(float64(q2-q1)) / float64(q1+1) * 100
}

// RankDiff fills in PercentageChange for every row and orders rows by it,
// largest first, breaking ties by SKU.
func RankDiff(rows []DiffRow) {
	for i := range rows {
		rows[i].PercentageChange = PercentageChange(rows[i].QuantityDate1, rows[i].QuantityDate2)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PercentageChange != rows[j].PercentageChange {
			return rows[i].PercentageChange > rows[j].PercentageChange
		}
		return rows[i].SKU < rows[j].SKU
	})
}
