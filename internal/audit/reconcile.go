package audit

import (
	"sort"
)

// IsFresh reports whether a concern from a prior record still describes the
// current code.
//
// Global concerns are pinned to the whole artifact: any code change makes
// them stale. Line-scoped concerns survive as long as every referenced line
// hashes the same as at report time.
func IsFresh(c *Concern, prevCodeHash, curCodeHash string, curLineHashes map[int]string) bool {
	if c.IsGlobal() {
		return prevCodeHash == curCodeHash
	}
	if len(c.LineHashes) != len(c.Location) {
		return false
	}
	for _, line := range c.Location {
		snapshot, ok := c.LineHashes[line]
		if !ok {
			return false
		}
		current, exists := curLineHashes[line]
		if !exists || current != snapshot {
			return false
		}
	}
	return true
}

// ChangedLines computes the symmetric difference between two line hash
// maps: every line number in [1, max(prevMax, curMax)] whose hash differs,
// where a line present on only one side counts as changed. This covers
// edits, insertions at the tail, and truncation alike.
func ChangedLines(prev, cur map[int]string) []int {
	max := 0
	for line := range prev {
		if line > max {
			max = line
		}
	}
	for line := range cur {
		if line > max {
			max = line
		}
	}

	var changed []int
	for line := 1; line <= max; line++ {
		prevHash, inPrev := prev[line]
		curHash, inCur := cur[line]
		if inPrev != inCur || prevHash != curHash {
			changed = append(changed, line)
		}
	}
	return changed
}

// Merge combines reused concerns from a prior record with fresh concerns
// from a scoped re-audit.
//
// Fresh line-scoped concerns must intersect the changed-line set; a concern
// the scoped audit reports about untouched lines is noise and is dropped.
// Fresh global concerns are kept since the stale global concerns they
// replace never survive a code change. On ID collision the reused concern
// wins: the prior wording was produced with full context.
func Merge(reused, fresh []Concern, changedLines []int, curLineHashes map[int]string) []Concern {
	changedSet := make(map[int]bool, len(changedLines))
	for _, line := range changedLines {
		changedSet[line] = true
	}
	reusedIDs := make(map[string]bool, len(reused))
	for _, c := range reused {
		reusedIDs[c.ID] = true
	}

	merged := make([]Concern, 0, len(reused)+len(fresh))
	merged = append(merged, reused...)

	for _, c := range fresh {
		if reusedIDs[c.ID] {
			continue
		}
		if !c.IsGlobal() && !intersects(c.Location, changedSet) {
			continue
		}
		c.LineHashes = snapshotLines(c.Location, curLineHashes)
		merged = append(merged, c)
	}

	return merged
}

// MergeOpenQuestions concatenates prior and new questions, deduplicating by
// first occurrence while preserving order.
func MergeOpenQuestions(prior, fresh []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range append(append([]string{}, prior...), fresh...) {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

// snapshotLines captures the current hash of each referenced line. Lines
// beyond the current code are silently skipped; the freshness check treats
// the count mismatch as stale on the next run.
func snapshotLines(lines []int, curLineHashes map[int]string) map[int]string {
	if len(lines) == 0 {
		return nil
	}
	snapshot := make(map[int]string, len(lines))
	for _, line := range lines {
		if h, ok := curLineHashes[line]; ok {
			snapshot[line] = h
		}
	}
	return snapshot
}

func intersects(lines []int, set map[int]bool) bool {
	for _, line := range lines {
		if set[line] {
			return true
		}
	}
	return false
}

// SortConcerns orders concerns by category, then numeric suffix, then ID,
// giving reports a stable presentation order.
func SortConcerns(concerns []Concern) {
	sort.SliceStable(concerns, func(i, j int) bool {
		if concerns[i].Category() != concerns[j].Category() {
			return concerns[i].Category() < concerns[j].Category()
		}
		return concerns[i].ID < concerns[j].ID
	})
}
