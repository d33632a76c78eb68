package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"quorum-ai/internal/domain"
)

// generalistCount is how many synthetic alters back an empty configuration.
const generalistCount = 3

// BuildAlterSet constructs the engine's alter descriptors from
// configuration, in order of preference:
//
//  1. An explicit alter list is used as-is, with generated names and a
//     Medium priority filled in where missing.
//  2. Otherwise one specialist is synthesized per team member, inheriting
//     the team description as its competencies.
//  3. With neither configured, three generalists keep the engine usable.
func BuildAlterSet(alters []domain.AlterDescriptor, teams domain.TeamRegistry) map[int]domain.AlterDescriptor {
	set := make(map[int]domain.AlterDescriptor)

	if len(alters) > 0 {
		for _, desc := range alters {
			if desc.Name == "" {
				desc.Name = domain.DefaultName(desc.ID)
			}
			if desc.Priority == "" {
				desc.Priority = domain.PriorityMedium
			}
			set[desc.ID] = desc
		}
		return set
	}

	teamNames := make([]string, 0, len(teams))
	for name := range teams {
		teamNames = append(teamNames, name)
	}
	sort.Strings(teamNames)

	for _, teamName := range teamNames {
		team := teams[teamName]
		competencies := team.Description
		if competencies == "" {
			competencies = teamName
		}
		for _, id := range team.Alters {
			if _, exists := set[id]; exists {
				continue
			}
			set[id] = domain.AlterDescriptor{
				ID:           id,
				Name:         fmt.Sprintf("%s Specialist %d", titleCase(teamName), id),
				Priority:     domain.PriorityMedium,
				Competencies: competencies,
			}
		}
	}
	if len(set) > 0 {
		return set
	}

	for id := 1; id <= generalistCount; id++ {
		set[id] = domain.AlterDescriptor{
			ID:           id,
			Name:         fmt.Sprintf("Generalist %d", id),
			Priority:     domain.PriorityMedium,
			Competencies: "General software engineering and architecture.",
		}
	}
	return set
}

// ResolveRoster selects the participating alters for a round: the union
// of all members of the assigned teams, restricted to known alters and
// ordered by ID. An empty resolution falls back to the first three known
// alters so a round always has participants.
func ResolveRoster(assignedTeams []string, teams domain.TeamRegistry, alters map[int]domain.AlterDescriptor) []domain.AlterDescriptor {
	ids := make(map[int]bool)
	for _, teamName := range assignedTeams {
		team, ok := teams[teamName]
		if !ok {
			continue
		}
		for _, id := range team.Alters {
			if _, known := alters[id]; known {
				ids[id] = true
			}
		}
	}

	var roster []domain.AlterDescriptor
	if len(ids) > 0 {
		sorted := make([]int, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Ints(sorted)
		for _, id := range sorted {
			roster = append(roster, alters[id])
		}
		return roster
	}

	// Fallback: first alters by ID.
	all := make([]int, 0, len(alters))
	for id := range alters {
		all = append(all, id)
	}
	sort.Ints(all)
	if len(all) > generalistCount {
		all = all[:generalistCount]
	}
	for _, id := range all {
		roster = append(roster, alters[id])
	}
	return roster
}

// titleCase renders a snake_case team id as a display name:
// "backend_team" becomes "Backend Team".
func titleCase(s string) string {
	words := strings.Split(s, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
