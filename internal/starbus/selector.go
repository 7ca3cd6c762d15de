// internal/starbus/selector.go
package starbus

import "sort"

// SelectActive resolves the active task id from a desired id plus the
// current list of known task records, healing stale or terminal
// references.
//
// If desired is set and appears in candidates with a non-terminal status,
// it is returned unchanged. Otherwise the non-terminal candidates are
// sorted by (status priority, -updated_at, -created_at, task_id) and the
// first is returned, or "" if none remain.
func SelectActive(desired string, candidates []TaskRecord) string {
	if desired != "" {
		for _, c := range candidates {
			if c.State.TaskID == desired && !IsTerminal(c.State.Status) {
				return desired
			}
		}
	}

	var live []TaskRecord
	for _, c := range candidates {
		if !IsTerminal(c.State.Status) {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		return ""
	}

	sort.Slice(live, func(i, j int) bool {
		a, b := live[i], live[j]
		pa, pb := StatusPriority(a.State.Status), StatusPriority(b.State.Status)
		if pa != pb {
			return pa < pb
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.State.TaskID < b.State.TaskID
	})

	return live[0].State.TaskID
}
