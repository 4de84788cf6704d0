package game

// AdvanceTurn returns the index of the next identity after current in order
// for which eligible is true, wrapping around and coming back to current
// last. It returns -1 when nobody is eligible.
func AdvanceTurn(order []string, current int, eligible func(string) bool) int {
	n := len(order)
	if n == 0 {
		return -1
	}
	for i := 1; i <= n; i++ {
		next := ((current+i)%n + n) % n
		if eligible(order[next]) {
			return next
		}
	}
	return -1
}

// SettleTurn keeps current if that slot is eligible, otherwise advances.
func SettleTurn(order []string, current int, eligible func(string) bool) int {
	if current >= 0 && current < len(order) && eligible(order[current]) {
		return current
	}
	return AdvanceTurn(order, current, eligible)
}
