package live

import "github.com/weiawesome/seedling-live/internal/domain"

// Partition groups participants by mode. Groups are disjoint, their union is
// the input, and each group is ordered by participant ID, so the result
// depends only on the input set.
func Partition(participants map[string]domain.Participant) map[domain.Mode][]domain.Participant {
	groups := make(map[domain.Mode][]domain.Participant)
	for _, p := range participants {
		groups[p.Mode] = append(groups[p.Mode], p)
	}
	for _, g := range groups {
		domain.SortParticipants(g)
	}
	return groups
}
