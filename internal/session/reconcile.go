package session

import (
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Outcome lists what a push did to the store
type Outcome struct {
	Added   []string
	Removed []string
	Updated []string
}

// Empty reports a push that changed nothing
func (o Outcome) Empty() bool {
	return len(o.Added) == 0 && len(o.Removed) == 0 && len(o.Updated) == 0
}

// Apply merges a pushed session array into the active map, element by element in order:
// terminal state removes, unseen ids are inserted, a changed state is updated, anything else
// is a no-op. Applying the same array twice leaves the store as applying it once.
func (s *Store) Apply(pushed []models.Session) Outcome {
	var out Outcome

	s.mu.Lock()
	for _, item := range pushed {
		state := models.ParseState(string(item.State))
		current, known := s.active[item.ID]

		switch {
		case state.IsTerminal():
			if known {
				delete(s.active, item.ID)
				out.Removed = append(out.Removed, item.ID)
			}
		case !known:
			if _, archived := s.terminated[item.ID]; archived {
				continue
			}
			s.addLocked(item)
			out.Added = append(out.Added, item.ID)
		case state != current.State:
			if s.policy == PushFullReplace {
				s.active[item.ID] = item.Normalize()
			} else {
				current.State = state
				s.active[item.ID] = current
			}
			out.Updated = append(out.Updated, item.ID)
		}
	}
	s.mu.Unlock()

	if !out.Empty() {
		s.changed()
	}
	return out
}
