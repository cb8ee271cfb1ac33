package jobledger

// Classify derives the change type from an optional previous/new snapshot
// pair. It is a total function of the two pointers: absent-previous means
// ADDED, absent-new means DELETED, anything else is UPDATED.
func Classify(previous, next *MaterialSnapshot) ChangeType {
	prevAbsent := previous == nil || previous.MaterialName == ""
	nextAbsent := next == nil || next.MaterialName == ""
	switch {
	case prevAbsent && !nextAbsent:
		return ChangeTypeAdded
	case !prevAbsent && nextAbsent:
		return ChangeTypeDeleted
	default:
		return ChangeTypeUpdated
	}
}

// LineChange pairs the snapshots of one changed material line.
type LineChange struct {
	Previous *MaterialSnapshot
	New      *MaterialSnapshot
	Change   ChangeType
}

// DiffLines compares the previous and new material lines of a job, matching
// lines by material name, and returns one change per line that was added,
// removed, or had any field modified. Unchanged lines produce no entry.
func DiffLines(previous, next []MaterialSnapshot) []LineChange {
	prevByName := make(map[string]MaterialSnapshot, len(previous))
	for _, line := range previous {
		prevByName[line.MaterialName] = line
	}
	nextByName := make(map[string]MaterialSnapshot, len(next))
	for _, line := range next {
		nextByName[line.MaterialName] = line
	}

	changes := []LineChange{}
	// Preserve the order of the new line list, then deletions in previous order.
	for _, line := range next {
		prev, existed := prevByName[line.MaterialName]
		if !existed {
			added := line
			changes = append(changes, LineChange{New: &added, Change: ChangeTypeAdded})
			continue
		}
		if !snapshotEqual(prev, line) {
			p, n := prev, line
			changes = append(changes, LineChange{Previous: &p, New: &n, Change: ChangeTypeUpdated})
		}
	}
	for _, line := range previous {
		if _, kept := nextByName[line.MaterialName]; !kept {
			deleted := line
			changes = append(changes, LineChange{Previous: &deleted, Change: ChangeTypeDeleted})
		}
	}
	return changes
}

func snapshotEqual(a, b MaterialSnapshot) bool {
	return a.MaterialName == b.MaterialName &&
		a.PaperSize == b.PaperSize &&
		a.PaperType == b.PaperType &&
		a.Grammage == b.Grammage &&
		a.Quantity == b.Quantity &&
		a.UnitCost.Equal(b.UnitCost) &&
		a.TotalCost.Equal(b.TotalCost)
}
