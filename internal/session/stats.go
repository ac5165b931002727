package session

import "sort"

// Stats is derived from a session's touches; nothing here is persisted.
type Stats struct {
	Total    int            `json:"total"`
	Good     int            `json:"good"`
	Bad      int            `json:"bad"`
	ByAction map[string]int `json:"byAction"`
	// Actions lists ByAction's keys: known actions first in their given
	// order, then any others seen, sorted.
	Actions []string `json:"-"`
}

// ComputeStats folds touches into a summary. Every action in known is
// present, at zero if never logged.
func ComputeStats(touches []Touch, known []string) Stats {
	s := Stats{ByAction: make(map[string]int, len(known))}
	for _, a := range known {
		if _, dup := s.ByAction[a]; dup {
			continue
		}
		s.ByAction[a] = 0
		s.Actions = append(s.Actions, a)
	}

	var extra []string
	for _, t := range touches {
		s.Total++
		switch t.Quality {
		case Positive:
			s.Good++
		case Negative:
			s.Bad++
		}
		if t.ActionType == "" {
			continue
		}
		if _, ok := s.ByAction[t.ActionType]; !ok {
			extra = append(extra, t.ActionType)
		}
		s.ByAction[t.ActionType]++
	}
	sort.Strings(extra)
	s.Actions = append(s.Actions, extra...)
	return s
}

// Count returns the tally for action, zero when unseen.
func (s Stats) Count(action string) int {
	return s.ByAction[action]
}
