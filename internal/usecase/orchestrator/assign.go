package orchestrator

import (
	"sort"
	"strings"

	"quorum-ai/internal/domain"
)

// minKeywordLen filters out short connective words from team descriptions.
const minKeywordLen = 3

// fallbackTeams is the core set assigned when no description matches the
// question, or when no teams are configured at all.
var fallbackTeams = []string{
	"backend_team",
	"integration_team",
	"operations_team",
}

// AssignTeams routes a question to teams by keyword matching: every word
// of a team's description longer than minKeywordLen counts as a keyword,
// and a case-insensitive substring hit in the question assigns the team.
// The result is deduplicated and sorted for deterministic downstream use.
func AssignTeams(question string, teams domain.TeamRegistry) []string {
	if len(teams) == 0 {
		return append([]string(nil), fallbackTeams...)
	}

	questionLower := strings.ToLower(question)

	assigned := make(map[string]bool)
	for name, team := range teams {
		if team.Description == "" {
			continue
		}
		for _, word := range strings.Fields(team.Description) {
			if len(word) <= minKeywordLen {
				continue
			}
			if strings.Contains(questionLower, strings.ToLower(word)) {
				assigned[name] = true
				break
			}
		}
	}

	if len(assigned) == 0 {
		return append([]string(nil), fallbackTeams...)
	}

	names := make([]string, 0, len(assigned))
	for name := range assigned {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
