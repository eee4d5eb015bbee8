package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
)

// Report summarizes a set of conflicts.
type Report struct {
	Conflicts           []Conflict `json:"conflicts"`
	Analysis            string     `json:"analysis"`
	SuggestedResolution string     `json:"suggested_resolution"`
}

// GenerateReport builds a report. Analysis and SuggestedResolution are never
// empty, even when there are no conflicts.
func (d *Detector) GenerateReport(conflicts []Conflict) Report {
	if len(conflicts) == 0 {
		return Report{
			Conflicts:           []Conflict{},
			Analysis:            "No conflicts detected among the recommendations.",
			SuggestedResolution: "No action required: the recommendations can be applied together.",
		}
	}

	counts := CountByType(conflicts)
	var typeParts []string
	for _, t := range []Type{Incompatible, Contradictory, RequiresSequencing} {
		if n := counts[t.Label()]; n > 0 {
			typeParts = append(typeParts, fmt.Sprintf("%d %s", n, strings.ToLower(t.String())))
		}
	}

	domains := make(map[string]struct{})
	for _, c := range conflicts {
		domains[strings.TrimSpace(c.RecommendationA.Domain)] = struct{}{}
	}
	domainList := make([]string, 0, len(domains))
	for d := range domains {
		domainList = append(domainList, d)
	}
	sort.Strings(domainList)

	analysis := fmt.Sprintf("Found %d conflict(s) among the recommendations (%s) affecting domain(s): %s.",
		len(conflicts), strings.Join(typeParts, ", "), strings.Join(domainList, ", "))

	var steps []string
	if counts[Incompatible.Label()] > 0 {
		steps = append(steps, "Choose a single technology for each domain and category with incompatible recommendations, weighing the stated rationales.")
	}
	if counts[Contradictory.Label()] > 0 {
		steps = append(steps, "Resolve contradictory advice by confirming project constraints with the owners of the affected domain before applying either recommendation.")
	}
	if counts[RequiresSequencing.Label()] > 0 {
		steps = append(steps, "Apply sequenced recommendations in the stated order and track the dependency between them.")
	}
	steps = append(steps, "Re-run the analysis after the changes to confirm no conflicts remain.")

	var sb strings.Builder
	for i, s := range steps {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, s)
	}

	return Report{
		Conflicts:           append([]Conflict(nil), conflicts...),
		Analysis:            analysis,
		SuggestedResolution: sb.String(),
	}
}

// AnalyzeConflict explains one conflict and lists numbered resolutions.
func (d *Detector) AnalyzeConflict(c Conflict) string {
	a, b := c.RecommendationA, c.RecommendationB

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s conflict in %s\n", c.Type, scope(a))

	switch c.Type {
	case Incompatible:
		fmt.Fprintf(&sb, "Both recommendations address %s but propose different technologies: %s versus %s.\n",
			scope(a), techList(a.Technologies), techList(b.Technologies))
	case Contradictory:
		fmt.Fprintf(&sb, "The recommendations agree on %s but give opposing advice: %q versus %q.\n",
			techList(a.Technologies), a.Content, b.Content)
	case RequiresSequencing:
		fmt.Fprintf(&sb, "The %s and %s recommendations depend on each other and must be applied in order.\n",
			strings.TrimSpace(a.Category), strings.TrimSpace(b.Category))
	}

	sb.WriteString("\nSuggested Resolutions:\n")
	for i, r := range resolutions(c) {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func resolutions(c Conflict) []string {
	a, b := c.RecommendationA, c.RecommendationB
	switch c.Type {
	case Incompatible:
		return []string{
			fmt.Sprintf("Adopt %s and drop %s.", techList(a.Technologies), techList(b.Technologies)),
			fmt.Sprintf("Adopt %s and drop %s.", techList(b.Technologies), techList(a.Technologies)),
			"If both are required, isolate them behind separate components with a clear boundary.",
		}
	case Contradictory:
		return []string{
			"Confirm which advice matches the project's constraints and discard the other.",
			"Record the decision so later analyses do not resurface it.",
		}
	case RequiresSequencing:
		return []string{
			fmt.Sprintf("Plan the %s work and the %s work as ordered steps.", strings.TrimSpace(a.Category), strings.TrimSpace(b.Category)),
			"Verify the first step is complete before starting the second.",
		}
	default:
		return []string{"Review both recommendations manually."}
	}
}

// FormatConflict renders one conflict as a block of text.
func (d *Detector) FormatConflict(c Conflict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Type: %s\n", c.Type)
	writeRecommendation(&sb, "Recommendation A", c.RecommendationA)
	writeRecommendation(&sb, "Recommendation B", c.RecommendationB)
	sb.WriteString("Rationale:\n")
	fmt.Fprintf(&sb, "  A: %s\n", rationale(c.RecommendationA))
	fmt.Fprintf(&sb, "  B: %s", rationale(c.RecommendationB))
	return sb.String()
}

func writeRecommendation(sb *strings.Builder, title string, r agent.Recommendation) {
	fmt.Fprintf(sb, "%s:\n", title)
	fmt.Fprintf(sb, "  Domain: %s\n", r.Domain)
	fmt.Fprintf(sb, "  Category: %s\n", r.Category)
	fmt.Fprintf(sb, "  Content: %s\n", r.Content)
	fmt.Fprintf(sb, "  Technologies: %s\n", techList(r.Technologies))
	if r.Source != "" {
		fmt.Fprintf(sb, "  Source: %s\n", r.Source)
	}
}

// FormatReport renders a full report: title, analysis, each conflict, and
// the suggested resolution, in that order.
func (d *Detector) FormatReport(r Report) string {
	var sb strings.Builder
	sb.WriteString("CONFLICT REPORT\n")
	sb.WriteString("===============\n\n")

	sb.WriteString("Analysis:\n")
	sb.WriteString(r.Analysis)
	sb.WriteString("\n\n")

	sb.WriteString("Conflicts Found:\n")
	if len(r.Conflicts) == 0 {
		sb.WriteString("(none)\n")
	}
	for i, c := range r.Conflicts {
		fmt.Fprintf(&sb, "%d)\n", i+1)
		for _, line := range strings.Split(d.FormatConflict(c), "\n") {
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	sb.WriteString("Suggested Resolution:\n")
	sb.WriteString(r.SuggestedResolution)
	sb.WriteString("\n")
	return sb.String()
}

func scope(r agent.Recommendation) string {
	return fmt.Sprintf("%s/%s", strings.TrimSpace(r.Domain), strings.TrimSpace(r.Category))
}

func techList(techs []string) string {
	if len(techs) == 0 {
		return "(no technologies)"
	}
	return strings.Join(techs, ", ")
}

func rationale(r agent.Recommendation) string {
	if strings.TrimSpace(r.Rationale) == "" {
		return "(no rationale given)"
	}
	return `"` + r.Rationale + `"`
}
