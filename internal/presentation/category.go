package presentation

import "strings"

// categoryRules are checked in order; the first rule with a matching keyword wins.
var categoryRules = []struct {
	id       int
	keywords []string
}{
	{2, []string{"loan"}},
	{3, []string{"card", "debit", "credit"}},
	{1, []string{"account", "saving", "deposit"}},
	{4, []string{"invest", "fund"}},
	{5, []string{"business", "corporate"}},
	{6, []string{"insur"}},
	{7, []string{"digital", "mobile", "online"}},
	{8, []string{"payroll", "salary"}},
}

// InferCategory maps a document title to a service category id, defaulting to General Information.
func InferCategory(title string) int {
	lower := strings.ToLower(title)
	for _, r := range categoryRules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.id
			}
		}
	}
	return 9
}
