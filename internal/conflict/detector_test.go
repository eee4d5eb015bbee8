package conflict

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
)

func rec(domain, category, content string, techs ...string) agent.Recommendation {
	return agent.Recommendation{
		Domain:       domain,
		Category:     category,
		Content:      content,
		Technologies: techs,
		Rationale:    "because " + content,
	}
}

func TestDetect_Incompatible(t *testing.T) {
	d := NewDetector()
	recs := []agent.Recommendation{
		rec("web", "framework", "Use React", "React"),
		rec("web", "framework", "Use Vue", "Vue"),
	}

	conflicts := d.Detect(recs)
	require.Len(t, conflicts, 1)
	assert.Equal(t, Incompatible, conflicts[0].Type)
	assert.Equal(t, "Use React", conflicts[0].RecommendationA.Content)
	assert.Equal(t, "Use Vue", conflicts[0].RecommendationB.Content)
}

func TestDetect_Rules(t *testing.T) {
	tests := []struct {
		name string
		a, b agent.Recommendation
		want *Type
	}{
		{
			name: "different domains never conflict",
			a:    rec("web", "framework", "Use React", "React"),
			b:    rec("backend", "framework", "Use Django", "Django"),
		},
		{
			name: "same technologies agree",
			a:    rec("web", "framework", "Use React", "React"),
			b:    rec("web", "framework", "Prefer React hooks", "react"),
		},
		{
			name: "domain and category are normalized",
			a:    rec(" Web ", "Framework", "Use React", "React"),
			b:    rec("web", "framework ", "Use Vue", "Vue"),
			want: ptr(Incompatible),
		},
		{
			name: "domain differing only in case is the same domain",
			a:    rec("web", "framework", "Use React", "React"),
			b:    rec("Web", "framework", "Use Vue", "Vue"),
			want: ptr(Incompatible),
		},
		{
			name: "category differing only in case is the same category",
			a:    rec("web", "FRAMEWORK", "Use React", "React"),
			b:    rec("web", "framework", "Use React too", "React"),
		},
		{
			name: "technology order is ignored",
			a:    rec("db", "engine", "Use both", "Postgres", "Redis"),
			b:    rec("db", "engine", "Use both too", "redis", "postgres"),
		},
		{
			name: "negated advice contradicts",
			a:    rec("web", "state", "Use Redux for global state", "Redux"),
			b:    rec("web", "state", "Avoid Redux in small apps", "Redux"),
			want: ptr(Contradictory),
		},
		{
			name: "both negated do not contradict",
			a:    rec("web", "state", "Never mutate state", "Redux"),
			b:    rec("web", "state", "Do not use globals", "Redux"),
		},
		{
			name: "ordering naming the other category",
			a:    rec("backend", "migrations", "Run migrations before deploy"),
			b:    rec("backend", "deploy", "Deploy with blue green"),
			want: ptr(RequiresSequencing),
		},
		{
			name: "ordering naming the other technology",
			a:    rec("backend", "api", "Set up the API after Postgres is provisioned"),
			b:    rec("backend", "database", "Provision a database", "Postgres"),
			want: ptr(RequiresSequencing),
		},
		{
			name: "different categories without ordering",
			a:    rec("backend", "api", "Use REST"),
			b:    rec("backend", "database", "Use Postgres", "Postgres"),
		},
		{
			name: "ordering word must be a whole word",
			a:    rec("backend", "api", "Use firstclass Postgres support"),
			b:    rec("backend", "database", "Use Postgres", "Postgres"),
		},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := d.Detect([]agent.Recommendation{tt.a, tt.b})
			if tt.want == nil {
				assert.Empty(t, conflicts)
				return
			}
			require.Len(t, conflicts, 1)
			assert.Equal(t, *tt.want, conflicts[0].Type)
		})
	}
}

func ptr(t Type) *Type { return &t }

func TestDetect_EmptyAndSingle(t *testing.T) {
	d := NewDetector()
	assert.NotNil(t, d.Detect(nil))
	assert.Empty(t, d.Detect(nil))
	assert.Empty(t, d.Detect([]agent.Recommendation{rec("web", "framework", "Use React", "React")}))
}

func TestDetect_PairOrder(t *testing.T) {
	d := NewDetector()
	recs := []agent.Recommendation{
		rec("web", "framework", "Use React", "React"),
		rec("web", "framework", "Use Vue", "Vue"),
		rec("web", "framework", "Use Svelte", "Svelte"),
	}

	conflicts := d.Detect(recs)
	require.Len(t, conflicts, 3)
	var pairs []string
	for _, c := range conflicts {
		pairs = append(pairs, c.RecommendationA.Content+"|"+c.RecommendationB.Content)
	}
	assert.Equal(t, []string{
		"Use React|Use Vue",
		"Use React|Use Svelte",
		"Use Vue|Use Svelte",
	}, pairs)
}

// Detecting a pair does not depend on which side it is presented from.
func TestDetect_Symmetric(t *testing.T) {
	domains := []string{"web", "backend"}
	categories := []string{"framework", "database", "deploy"}
	techs := []string{"React", "Vue", "Postgres"}
	contents := []string{"Use it", "Avoid it", "Do this before deploy", "Needs Postgres first"}

	rng := rand.New(rand.NewSource(7))
	pick := func(s []string) string { return s[rng.Intn(len(s))] }
	d := NewDetector()

	for i := 0; i < 500; i++ {
		a := rec(pick(domains), pick(categories), pick(contents), pick(techs))
		b := rec(pick(domains), pick(categories), pick(contents), pick(techs))

		ab := d.Detect([]agent.Recommendation{a, b})
		ba := d.Detect([]agent.Recommendation{b, a})
		require.Equal(t, len(ab), len(ba), "a=%+v b=%+v", a, b)
		if len(ab) == 1 {
			assert.Equal(t, ab[0].Type, ba[0].Type)
		}
		if a.Domain != b.Domain {
			assert.Empty(t, ab)
		}
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "Incompatible", Incompatible.String())
	assert.Equal(t, "Contradictory", Contradictory.String())
	assert.Equal(t, "RequiresSequencing", RequiresSequencing.String())
	assert.Equal(t, "Type(9)", Type(9).String())
	assert.Equal(t, "requires_sequencing", RequiresSequencing.Label())

	text, err := Contradictory.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Contradictory", string(text))
}

func TestCountByType(t *testing.T) {
	counts := CountByType([]Conflict{
		{Type: Incompatible},
		{Type: Incompatible},
		{Type: RequiresSequencing},
	})
	assert.Equal(t, map[string]int{"incompatible": 2, "requires_sequencing": 1}, counts)
}

func TestGenerateReport_Empty(t *testing.T) {
	d := NewDetector()
	r := d.GenerateReport(nil)

	assert.Empty(t, r.Conflicts)
	assert.Contains(t, strings.ToLower(r.Analysis), "no conflicts detected")
	assert.NotEmpty(t, r.SuggestedResolution)
}

func TestGenerateReport(t *testing.T) {
	d := NewDetector()
	conflicts := d.Detect([]agent.Recommendation{
		rec("web", "framework", "Use React", "React"),
		rec("web", "framework", "Use Vue", "Vue"),
		rec("web", "framework", "Use Svelte", "Svelte"),
	})
	r := d.GenerateReport(conflicts)

	require.Len(t, r.Conflicts, 3)
	assert.Contains(t, strings.ToLower(r.Analysis), "conflict")
	assert.Contains(t, r.Analysis, "3")
	assert.Contains(t, r.Analysis, "web")
	assert.True(t, strings.HasPrefix(r.SuggestedResolution, "1. "))
	assert.Contains(t, r.SuggestedResolution, "single technology")
}

func TestAnalyzeConflict(t *testing.T) {
	d := NewDetector()
	for _, typ := range []Type{Incompatible, Contradictory, RequiresSequencing} {
		t.Run(typ.String(), func(t *testing.T) {
			c := Conflict{
				RecommendationA: rec("web", "framework", "Use React", "React"),
				RecommendationB: rec("web", "build", "Use Vue", "Vue"),
				Type:            typ,
			}
			out := d.AnalyzeConflict(c)

			assert.Contains(t, out, typ.String())
			idx := strings.Index(out, "Suggested Resolutions")
			require.GreaterOrEqual(t, idx, 0)
			assert.Contains(t, out[idx:], "\n1. ")
		})
	}
}

func TestFormatConflict(t *testing.T) {
	d := NewDetector()
	a := rec("web", "framework", "Use React", "React")
	a.Rationale = "Large ecosystem"
	b := rec("web", "framework", "Use Vue", "Vue")
	b.Rationale = "Gentle learning curve"

	out := d.FormatConflict(Conflict{RecommendationA: a, RecommendationB: b, Type: Incompatible})

	for _, want := range []string{
		"Incompatible",
		"Domain: web",
		"Category: framework",
		"Use React", "Use Vue",
		"React", "Vue",
		"Rationale",
		"Large ecosystem",
		"Gentle learning curve",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFormatConflict_RationaleVerbatim(t *testing.T) {
	d := NewDetector()
	a := rec("web", "framework", "Use React", "React")
	a.Rationale = "Team knows \"hooks\"\nand JSX"
	b := rec("web", "framework", "Use Vue", "Vue")
	b.Rationale = "C:\\path\tbased"

	out := d.FormatConflict(Conflict{RecommendationA: a, RecommendationB: b, Type: Incompatible})

	assert.Contains(t, out, `"`+a.Rationale+`"`)
	assert.Contains(t, out, `"`+b.Rationale+`"`)
	assert.NotContains(t, out, `\"hooks\"`)
}

func TestFormatConflict_MissingRationale(t *testing.T) {
	d := NewDetector()
	a := rec("web", "framework", "Use React", "React")
	a.Rationale = ""
	out := d.FormatConflict(Conflict{RecommendationA: a, RecommendationB: a, Type: Incompatible})
	assert.Contains(t, out, "(no rationale given)")
}

func TestFormatReport_SectionOrder(t *testing.T) {
	d := NewDetector()
	conflicts := d.Detect([]agent.Recommendation{
		rec("web", "framework", "Use React", "React"),
		rec("web", "framework", "Use Vue", "Vue"),
	})
	out := d.FormatReport(d.GenerateReport(conflicts))

	last := -1
	for _, section := range []string{"CONFLICT REPORT", "Analysis:", "Conflicts Found:", "Suggested Resolution:"} {
		idx := strings.Index(out, section)
		require.Greater(t, idx, last, fmt.Sprintf("section %q out of order", section))
		last = idx
	}
	assert.Contains(t, out, "Use React")
}

func TestFormatReport_Empty(t *testing.T) {
	d := NewDetector()
	out := d.FormatReport(d.GenerateReport(nil))
	assert.Contains(t, out, "CONFLICT REPORT")
	assert.Contains(t, out, "(none)")
}
