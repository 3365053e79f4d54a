package migration

import (
	"sort"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// DefaultFuzzyThreshold is the largest normalized distance accepted by tier 3.
const DefaultFuzzyThreshold = 0.4

// unitCost counts a substitution as one edit, like an insertion or deletion.
var unitCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Match is the best candidate found by a Matcher. Distance is 0 for identical
// strings and 1 for completely different ones.
type Match struct {
	Index    int
	Label    string
	Distance float64
}

// Matcher scores a query against candidate labels and returns the closest one.
type Matcher interface {
	Score(query string, candidates []string) (Match, bool)
}

// LevenshteinMatcher scores by edit distance normalized to the longer string.
// A label is also compared word-window by word-window, so "rent" is as close
// to "Rent Expense" as to "Rent".
type LevenshteinMatcher struct{}

// Score implements Matcher. Ties keep the earliest candidate.
func (LevenshteinMatcher) Score(query string, candidates []string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || len(candidates) == 0 {
		return Match{}, false
	}
	queryWords := len(strings.Fields(q))

	best := Match{Index: -1, Distance: 2}
	for i, label := range candidates {
		l := strings.ToLower(strings.TrimSpace(label))
		if l == "" {
			continue
		}

		dist := normalizedDistance(q, l)
		words := strings.Fields(l)
		for start := 0; start+queryWords <= len(words) && queryWords < len(words); start++ {
			window := strings.Join(words[start:start+queryWords], " ")
			if d := normalizedDistance(q, window); d < dist {
				dist = d
			}
		}

		if dist < best.Distance {
			best = Match{Index: i, Label: label, Distance: dist}
		}
	}

	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}

func normalizedDistance(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	dist := levenshtein.DistanceForStrings(ra, rb, unitCost)
	return float64(dist) / float64(longest)
}

// Resolver maps free account text to an account id. Resolve is pure.
type Resolver struct {
	Matcher   Matcher
	Threshold float64
}

// NewResolver returns a Resolver using LevenshteinMatcher.
func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Resolver{Matcher: LevenshteinMatcher{}, Threshold: threshold}
}

// Resolve tries, in order: auto-apply mapping rules by descending priority
// (case-insensitive substring of text), an exact account name
// (case-insensitive) or code, and the fuzzy matcher over active account
// names and codes.
func (r *Resolver) Resolve(text string, accounts []ledger.Account, rules []MappingRule) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)

	ordered := make([]MappingRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	for _, rule := range ordered {
		if !rule.AutoApply || rule.LegacyTextPattern == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(rule.LegacyTextPattern)) {
			return rule.MappedAccountID, true
		}
	}

	for _, account := range accounts {
		if strings.ToLower(account.AccountName) == lower || (account.AccountCode != "" && account.AccountCode == text) {
			return account.AccountID, true
		}
	}

	if r.Matcher == nil {
		return 0, false
	}

	var labels []string
	var ids []int64
	for _, account := range accounts {
		if !account.IsActive {
			continue
		}
		labels = append(labels, account.AccountName)
		ids = append(ids, account.AccountID)
		if account.AccountCode != "" {
			labels = append(labels, account.AccountCode)
			ids = append(ids, account.AccountID)
		}
	}

	match, ok := r.Matcher.Score(text, labels)
	if !ok || match.Distance >= r.Threshold {
		return 0, false
	}
	return ids[match.Index], true
}
