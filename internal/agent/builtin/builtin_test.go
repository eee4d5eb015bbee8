package builtin

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

func testProject() agent.ProjectContext {
	return agent.ProjectContext{
		Root: "/project",
		FS: fstest.MapFS{
			"main.go":        {Data: []byte("package main\n\n// TODO: wire flags\nfunc main() {}\n")},
			"pkg/util.go":    {Data: []byte("package pkg\n// FIXME(ana): racy\n// HACK\nvar x = 1\n")},
			"pkg/long.go":    {Data: []byte(strings.Repeat("// line\n", 12))},
			"docs/readme.md": {Data: []byte("TODO list\n")},
		},
	}
}

func TestRegister(t *testing.T) {
	reg := agent.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	want := []string{KindLineCount, KindRecommend, KindSleep, KindTodoScan}
	got := reg.Kinds()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}

	if err := Register(reg); !errors.Is(err, errors.ErrAgentExists) {
		t.Errorf("second Register() error = %v, want ErrAgentExists", err)
	}
}

func TestLineCounter(t *testing.T) {
	task := agent.Task{
		ID:      "size",
		Kind:    KindLineCount,
		Target:  agent.Target{Files: []string{"**/*.go"}},
		Options: map[string]any{"max_lines": 10},
	}
	out, err := LineCounter{}.Run(context.Background(), task, testProject(), agent.Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out.Findings) != 2 {
		t.Fatalf("got %d findings, want 2: %+v", len(out.Findings), out.Findings)
	}
	warn := out.Findings[0]
	if warn.Severity != agent.SeverityWarning || warn.Location.File != "pkg/long.go" {
		t.Errorf("first finding = %+v, want warning for pkg/long.go", warn)
	}
	summary := out.Findings[1]
	if summary.Message != "3 file(s), 20 line(s) in total" {
		t.Errorf("summary = %q", summary.Message)
	}
	if out.Metadata.ResourceUsage.FilesRead != 3 {
		t.Errorf("FilesRead = %d, want 3", out.Metadata.ResourceUsage.FilesRead)
	}
}

func TestTodoScanner(t *testing.T) {
	task := agent.Task{ID: "todos", Kind: KindTodoScan, Target: agent.Target{Files: []string{"**/*.go"}}}
	out, err := TodoScanner{}.Run(context.Background(), task, testProject(), agent.Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tests := []struct {
		msg      string
		severity agent.Severity
		loc      string
	}{
		{"TODO: wire flags", agent.SeverityInfo, "main.go:3:4"},
		{"FIXME: racy", agent.SeverityWarning, "pkg/util.go:2:4"},
		{"HACK", agent.SeverityWarning, "pkg/util.go:3:4"},
	}
	if len(out.Findings) != len(tests) {
		t.Fatalf("got %d findings, want %d: %+v", len(out.Findings), len(tests), out.Findings)
	}
	for i, tt := range tests {
		f := out.Findings[i]
		if f.Message != tt.msg || f.Severity != tt.severity || f.Location.String() != tt.loc {
			t.Errorf("finding %d = {%q %v %s}, want {%q %v %s}",
				i, f.Message, f.Severity, f.Location, tt.msg, tt.severity, tt.loc)
		}
	}
}

func TestTodoScanner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := agent.Task{ID: "todos", Target: agent.Target{Files: []string{"**/*.go"}}}
	if _, err := (TodoScanner{}).Run(ctx, task, testProject(), agent.Config{}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestRecommender(t *testing.T) {
	task := agent.Task{
		ID:   "advice",
		Kind: KindRecommend,
		Options: map[string]any{
			"recommendations": []any{
				map[string]any{
					"domain":       "web",
					"category":     "framework",
					"content":      "Use React",
					"technologies": []any{"React"},
					"rationale":    "ecosystem",
				},
			},
		},
	}
	out, err := Recommender{}.Run(context.Background(), task, agent.ProjectContext{}, agent.Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	recs := out.Recommendations()
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
	if recs[0].Source != "advice" || recs[0].Technologies[0] != "React" || recs[0].Rationale != "ecosystem" {
		t.Errorf("recommendation = %+v", recs[0])
	}
}

func TestRecommender_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  any
	}{
		{"not a list", "web"},
		{"not a mapping", []any{"web"}},
		{"missing category", []any{map[string]any{"domain": "web"}}},
		{"bad technologies", []any{map[string]any{"domain": "web", "category": "ui", "technologies": "React"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := agent.Task{ID: "advice", Options: map[string]any{"recommendations": tt.opt}}
			_, err := Recommender{}.Run(context.Background(), task, agent.ProjectContext{}, agent.Config{})
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSleeper(t *testing.T) {
	task := agent.Task{ID: "nap", Options: map[string]any{"duration": "5ms"}}
	out, err := Sleeper{}.Run(context.Background(), task, agent.ProjectContext{}, agent.Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Findings) != 1 || out.Findings[0].Message != "slept 5ms" {
		t.Errorf("findings = %+v", out.Findings)
	}
}

func TestSleeper_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	task := agent.Task{ID: "nap", Options: map[string]any{"duration": "1m"}}
	start := time.Now()
	_, err := Sleeper{}.Run(ctx, task, agent.ProjectContext{}, agent.Config{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleeper ignored cancellation")
	}
}

func TestSleeper_InvalidDuration(t *testing.T) {
	task := agent.Task{ID: "nap", Options: map[string]any{"duration": "soon"}}
	if _, err := (Sleeper{}).Run(context.Background(), task, agent.ProjectContext{}, agent.Config{}); err == nil {
		t.Error("expected error for invalid duration")
	}
}
