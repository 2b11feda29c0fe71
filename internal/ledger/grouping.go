package ledger

import (
	"fmt"
	"sort"
	"strings"
)

const (
	SummaryCharge   = "Charge"
	SummaryPoint    = "Point redemption"
	SummaryPurchase = "New purchase"
	SummaryRefund   = "Refunded"

	// BusStopPlaceholder marks bus legs whose stop name has not been
	// filled in yet; downstream reports count these as warnings.
	BusStopPlaceholder = "??"
)

// CarryoverSummary renders the seed-row summary for a card carried over
// from a paper ledger.
func CarryoverSummary(month int) string {
	return fmt.Sprintf("Carryover from month %d", month)
}

// SortDetails orders detail rows by usage time, ties broken by the
// stored sequence number. All grouping operates on this order.
func SortDetails(details []Detail) []Detail {
	sorted := make([]Detail, len(details))
	copy(sorted, details)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return sorted
}

// HasExplicitGroups reports whether any detail row carries a manual
// group id. The moment one exists, automatic trip detection is
// suppressed for the whole ledger.
func HasExplicitGroups(details []Detail) bool {
	for _, d := range details {
		if d.GroupID != nil {
			return true
		}
	}
	return false
}

// Groups partitions sorted detail rows into logical trips. With
// explicit group ids present the stored structure is trusted verbatim;
// otherwise consecutive rail legs are chained automatically whenever
// the exit of one leg equals the entry of the next.
func Groups(details []Detail) [][]Detail {
	if len(details) == 0 {
		return nil
	}
	if HasExplicitGroups(details) {
		return explicitGroups(details)
	}
	return autoGroups(details)
}

func explicitGroups(details []Detail) [][]Detail {
	var groups [][]Detail
	var current []Detail
	var currentID *int

	for _, d := range details {
		if len(current) > 0 && sameGroupID(currentID, d.GroupID) {
			current = append(current, d)
			continue
		}
		if len(current) > 0 {
			groups = append(groups, current)
		}
		current = []Detail{d}
		currentID = d.GroupID
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func sameGroupID(a, b *int) bool {
	return a != nil && b != nil && *a == *b
}

func autoGroups(details []Detail) [][]Detail {
	var groups [][]Detail
	var current []Detail

	for _, d := range details {
		if len(current) > 0 && continuesTrip(current[len(current)-1], d) {
			current = append(current, d)
			continue
		}
		if len(current) > 0 {
			groups = append(groups, current)
		}
		current = []Detail{d}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// continuesTrip reports whether next is a rail leg continuing prev:
// prev's exit station is next's entry station.
func continuesTrip(prev, next Detail) bool {
	if prev.IsCharge || prev.IsPoint || prev.IsBus {
		return false
	}
	if next.IsCharge || next.IsPoint || next.IsBus {
		return false
	}
	return prev.ExitStation != "" && prev.ExitStation == next.EntryStation
}

// DividerBoundaries derives the explicit divider positions from stored
// group ids: position i means a boundary between sorted rows i and i+1.
// An all-nil ledger is in automatic mode and has no dividers.
func DividerBoundaries(details []Detail) []int {
	if !HasExplicitGroups(details) {
		return nil
	}
	var boundaries []int
	for i := 0; i < len(details)-1; i++ {
		if !sameGroupID(details[i].GroupID, details[i+1].GroupID) {
			boundaries = append(boundaries, i)
		}
	}
	return boundaries
}

// ApplyDividers assigns explicit group ids induced by the given
// boundary positions. Every row gets a group id, singletons included,
// so downstream summaries trust the explicit structure over inference.
// An empty boundary set clears all group ids, reverting the ledger to
// automatic detection.
func ApplyDividers(details []Detail, boundaries []int) []Detail {
	result := make([]Detail, len(details))
	copy(result, details)

	if len(boundaries) == 0 {
		for i := range result {
			result[i].GroupID = nil
		}
		return result
	}

	boundarySet := make(map[int]bool, len(boundaries))
	for _, b := range boundaries {
		boundarySet[b] = true
	}

	group := 1
	for i := range result {
		id := group
		result[i].GroupID = &id
		if boundarySet[i] {
			group++
		}
	}
	return result
}

// GroupSummary renders one trip group as display text.
func GroupSummary(group []Detail) string {
	if len(group) == 0 {
		return ""
	}

	first := group[0]
	if first.IsCharge {
		return SummaryCharge
	}
	if first.IsPoint {
		return SummaryPoint
	}
	if first.IsBus {
		stop := first.BusStop
		if stop == "" {
			stop = BusStopPlaceholder
		}
		return fmt.Sprintf("Bus (%s)", stop)
	}

	// Rail: chain the route through every leg.
	points := []string{first.EntryStation}
	for _, d := range group {
		points = append(points, d.ExitStation)
	}
	return strings.Join(points, " - ")
}

// Summary renders the whole detail set of one ledger row.
func Summary(details []Detail) string {
	groups := Groups(SortDetails(details))
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, GroupSummary(g))
	}
	return strings.Join(parts, ", ")
}

// CountUnknownBusStops counts bus legs still showing the placeholder.
func CountUnknownBusStops(details []Detail) int {
	count := 0
	for _, d := range details {
		if d.IsBus && d.BusStop == "" {
			count++
		}
	}
	return count
}
