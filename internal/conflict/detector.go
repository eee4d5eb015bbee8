// Package conflict finds recommendations that cannot all be followed and
// renders a report with suggested resolutions.
package conflict

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
)

// Type classifies a conflict between two recommendations.
type Type int

const (
	// Incompatible: same domain and category, different technologies.
	Incompatible Type = iota
	// Contradictory: same domain, category and technologies, but one
	// recommendation advises against what the other advises.
	Contradictory
	// RequiresSequencing: same domain, different categories, and one
	// recommendation states an ordering relative to the other.
	RequiresSequencing
)

// String returns the display name of the conflict type.
func (t Type) String() string {
	switch t {
	case Incompatible:
		return "Incompatible"
	case Contradictory:
		return "Contradictory"
	case RequiresSequencing:
		return "RequiresSequencing"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Label returns the lower-case label used in metrics and summaries.
func (t Type) Label() string {
	switch t {
	case Incompatible:
		return "incompatible"
	case Contradictory:
		return "contradictory"
	case RequiresSequencing:
		return "requires_sequencing"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Conflict is a pair of recommendations that cannot both be followed as-is.
type Conflict struct {
	RecommendationA agent.Recommendation `json:"recommendation_a"`
	RecommendationB agent.Recommendation `json:"recommendation_b"`
	Type            Type                 `json:"type"`
}

var (
	negationPrefixes = []string{"avoid", "do not", "don't", "dont", "never"}
	orderingMarker   = regexp.MustCompile(`\b(before|after|requires?|depends on|first)\b`)
)

// Detector compares recommendations pairwise. The zero value is ready to use.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect reports every conflicting unordered pair. Pairs are emitted in input
// order: (0,1), (0,2), ..., (1,2), ...; within a pair the earlier input is
// RecommendationA. Recommendations from different domains never conflict.
func (d *Detector) Detect(recs []agent.Recommendation) []Conflict {
	conflicts := make([]Conflict, 0)
	for i := 0; i < len(recs); i++ {
		for j := i + 1; j < len(recs); j++ {
			if typ, ok := classify(recs[i], recs[j]); ok {
				conflicts = append(conflicts, Conflict{
					RecommendationA: recs[i],
					RecommendationB: recs[j],
					Type:            typ,
				})
			}
		}
	}
	return conflicts
}

// classify returns the conflict type of a pair, if any. The rules are
// mutually exclusive, so a pair has at most one type. Domains and categories
// match case-insensitively after trimming: "Web" and "web " name one domain.
func classify(a, b agent.Recommendation) (Type, bool) {
	if normalize(a.Domain) != normalize(b.Domain) {
		return 0, false
	}

	if normalize(a.Category) == normalize(b.Category) {
		if !sameTechnologies(a.Technologies, b.Technologies) {
			return Incompatible, true
		}
		if isNegated(a.Content) != isNegated(b.Content) {
			return Contradictory, true
		}
		return 0, false
	}

	if sequences(a, b) || sequences(b, a) {
		return RequiresSequencing, true
	}
	return 0, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameTechnologies compares technology lists as case-insensitive sets.
func sameTechnologies(a, b []string) bool {
	return strings.Join(techSet(a), "\x00") == strings.Join(techSet(b), "\x00")
}

func techSet(techs []string) []string {
	seen := make(map[string]struct{}, len(techs))
	out := make([]string, 0, len(techs))
	for _, t := range techs {
		n := normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func isNegated(content string) bool {
	c := normalize(content)
	for _, p := range negationPrefixes {
		if strings.HasPrefix(c, p+" ") || c == p {
			return true
		}
	}
	return false
}

// sequences reports whether a's content states an ordering that names b's
// category or one of b's technologies.
func sequences(a, b agent.Recommendation) bool {
	content := normalize(a.Content)
	if !orderingMarker.MatchString(content) {
		return false
	}
	if cat := normalize(b.Category); cat != "" && strings.Contains(content, cat) {
		return true
	}
	for _, tech := range techSet(b.Technologies) {
		if strings.Contains(content, tech) {
			return true
		}
	}
	return false
}

// CountByType tallies conflicts by Type.Label.
func CountByType(conflicts []Conflict) map[string]int {
	counts := make(map[string]int)
	for _, c := range conflicts {
		counts[c.Type.Label()]++
	}
	return counts
}
