package core

// MaxRoundingDrift bounds |amount - sum(AllocateAll(amount))|. Each of the
// six jars rounds half-up, so the error per jar lies in (-0.5, 0.5].
const MaxRoundingDrift Money = 3

// Allocation maps every catalog jar to its share of one income.
type Allocation map[JarCode]Money

// Allocate returns round-half-up(amount * percentage / 100) for non-negative amounts.
func Allocate(amount Money, percentage int) Money {
	return Money((int64(amount)*int64(percentage) + 50) / 100)
}

// AllocateAll splits amount across the catalog. The parts are rounded
// independently and may not add up to amount; see Allocation.Drift.
func AllocateAll(amount Money) Allocation {
	out := make(Allocation, len(catalog))
	for _, d := range catalog {
		out[d.Code] = Allocate(amount, d.Percentage)
	}
	return out
}

// Total sums the allocated parts.
func (a Allocation) Total() Money {
	var sum Money
	for _, v := range a {
		sum += v
	}
	return sum
}

// Drift is amount minus the allocated total. Negative means more was
// allocated than received.
func (a Allocation) Drift(amount Money) Money {
	return amount - a.Total()
}

// Deltas converts the allocation into ledger increments on allocated and balance.
func (a Allocation) Deltas() []JarDelta {
	deltas := make([]JarDelta, 0, len(a))
	for _, code := range Codes() {
		v, ok := a[code]
		if !ok {
			continue
		}
		deltas = append(deltas, JarDelta{Code: code, Allocated: v, Balance: v})
	}
	return deltas
}
