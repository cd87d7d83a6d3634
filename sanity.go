package tabula

import "fmt"

// checkMemorySane verifies a MemoryTable's internal bookkeeping agrees with
// itself: the order slice and the rows map contain the same identifiers,
// with no duplicates, and every row carries the identifier it is keyed
// under. Called after mutations when sanityChecks is enabled.
func checkMemorySane(m *MemoryTable) error {
	if len(m.order) != len(m.rows) {
		return fmt.Errorf("%w: order has %d entries, rows has %d", ErrCorruption, len(m.order), len(m.rows))
	}
	seen := make(map[int64]bool, len(m.order))
	idIdx, err := m.idIndex()
	if err != nil {
		return nil // layouts without an ID field have nothing to check here
	}
	for _, id := range m.order {
		if seen[id] {
			return fmt.Errorf("%w: identifier %d appears twice in insertion order", ErrCorruption, id)
		}
		seen[id] = true
		row, ok := m.rows[id]
		if !ok {
			return fmt.Errorf("%w: identifier %d in order but not in rows", ErrCorruption, id)
		}
		rowID, err := identifierValue(row.Get(idIdx))
		if err != nil {
			return fmt.Errorf("%w: identifier %d: %v", ErrCorruption, id, err)
		}
		if rowID != id {
			return fmt.Errorf("%w: row stored under key %d carries identifier %d", ErrCorruption, id, rowID)
		}
	}
	return nil
}
