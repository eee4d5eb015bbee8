package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/conflict"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
	"github.com/moabualruz/ricecoder-sub010/internal/event"
	"github.com/moabualruz/ricecoder-sub010/internal/executor"
	"github.com/moabualruz/ricecoder-sub010/internal/metrics"
)

func testConfig() executor.Config {
	return executor.Config{MaxConcurrency: 4, Timeout: 2 * time.Second}
}

// timeline records worker start and end order.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (tl *timeline) add(s string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.events = append(tl.events, s)
}

func (tl *timeline) index(s string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for i, e := range tl.events {
		if e == s {
			return i
		}
	}
	return -1
}

func recordingAgent(tl *timeline) agent.Agent {
	return agent.Func(func(ctx context.Context, task agent.Task, _ agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
		tl.add("start:" + task.ID)
		time.Sleep(5 * time.Millisecond)
		tl.add("end:" + task.ID)
		return &agent.AgentOutput{Findings: []agent.Finding{{
			Severity: agent.SeverityInfo,
			Category: "trace",
			Message:  "ran " + task.ID,
		}}}, nil
	})
}

func tasks(kind string, ids ...string) []agent.Task {
	out := make([]agent.Task, len(ids))
	for i, id := range ids {
		out[i] = agent.Task{ID: id, Kind: kind}
	}
	return out
}

func TestBuildGraph(t *testing.T) {
	o := New(agent.NewRegistry())

	tests := []struct {
		name    string
		tasks   []agent.Task
		edges   []Edge
		wantErr error
	}{
		{
			name:  "valid",
			tasks: tasks("x", "a", "b"),
			edges: []Edge{{TaskID: "b", DependsOn: "a"}},
		},
		{
			name:    "duplicate id",
			tasks:   tasks("x", "a", "a"),
			wantErr: errors.ErrDuplicateTaskID,
		},
		{
			name:    "unknown dependency",
			tasks:   tasks("x", "a"),
			edges:   []Edge{{TaskID: "a", DependsOn: "ghost"}},
			wantErr: errors.ErrUnknownTask,
		},
		{
			name:  "cycle",
			tasks: tasks("x", "a", "b"),
			edges: []Edge{
				{TaskID: "b", DependsOn: "a"},
				{TaskID: "a", DependsOn: "b"},
			},
			wantErr: errors.ErrDependencyCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := o.BuildGraph(tt.tasks, tt.edges)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("BuildGraph() error = %v", err)
				}
				if g.Len() != len(tt.tasks) {
					t.Errorf("Len() = %d, want %d", g.Len(), len(tt.tasks))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BuildGraph() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun_PhasesRunInOrder(t *testing.T) {
	tl := &timeline{}
	reg := agent.NewRegistry()
	reg.MustRegister("trace", recordingAgent(tl))
	o := New(reg)

	// Diamond: b and c depend on a, d depends on both.
	g, err := o.BuildGraph(tasks("trace", "a", "b", "c", "d"), []Edge{
		{TaskID: "b", DependsOn: "a"},
		{TaskID: "c", DependsOn: "a"},
		{TaskID: "d", DependsOn: "b"},
		{TaskID: "d", DependsOn: "c"},
	})
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	results, err := o.Run(context.Background(), g, testConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got []string
	for _, r := range results {
		if !r.Success {
			t.Errorf("task %s failed: %s", r.TaskID, r.Error)
		}
		got = append(got, fmt.Sprintf("%s@%d", r.TaskID, r.Phase))
	}
	if want := "a@0 b@1 c@1 d@2"; strings.Join(got, " ") != want {
		t.Errorf("results = %v, want %s", got, want)
	}

	for _, pair := range [][2]string{
		{"end:a", "start:b"},
		{"end:a", "start:c"},
		{"end:b", "start:d"},
		{"end:c", "start:d"},
	} {
		if tl.index(pair[0]) > tl.index(pair[1]) {
			t.Errorf("%s happened after %s", pair[0], pair[1])
		}
	}
}

func TestRun_FailuresDoNotStopTheRun(t *testing.T) {
	reg := agent.NewRegistry()
	reg.MustRegister("ok", agent.Func(func(context.Context, agent.Task, agent.ProjectContext, agent.Config) (*agent.AgentOutput, error) {
		return &agent.AgentOutput{}, nil
	}))
	reg.MustRegister("boom", agent.Func(func(context.Context, agent.Task, agent.ProjectContext, agent.Config) (*agent.AgentOutput, error) {
		panic("boom")
	}))
	o := New(reg)

	all := []agent.Task{
		{ID: "first", Kind: "boom"},
		{ID: "sibling", Kind: "ok"},
		{ID: "after", Kind: "ok"},
		{ID: "missing", Kind: "nope"},
	}
	g, err := o.BuildGraph(all, []Edge{{TaskID: "after", DependsOn: "first"}})
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	results, err := o.Run(context.Background(), g, testConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != len(all) {
		t.Fatalf("got %d results, want %d", len(results), len(all))
	}

	byID := make(map[string]executor.TaskResult)
	for _, r := range results {
		byID[r.TaskID] = r
	}
	if !errors.Is(byID["first"].Err, errors.ErrWorkerPanic) {
		t.Errorf("first: err = %v, want ErrWorkerPanic", byID["first"].Err)
	}
	if !errors.Is(byID["missing"].Err, errors.ErrUnknownAgent) {
		t.Errorf("missing: err = %v, want ErrUnknownAgent", byID["missing"].Err)
	}
	if !byID["sibling"].Success || !byID["after"].Success {
		t.Errorf("healthy tasks failed: %+v %+v", byID["sibling"], byID["after"])
	}
}

func TestRun_CancellationFailsLaterPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := agent.NewRegistry()
	reg.MustRegister("first", agent.Func(func(context.Context, agent.Task, agent.ProjectContext, agent.Config) (*agent.AgentOutput, error) {
		return &agent.AgentOutput{}, nil
	}))
	reg.MustRegister("ok", agent.Func(func(context.Context, agent.Task, agent.ProjectContext, agent.Config) (*agent.AgentOutput, error) {
		t.Error("task in a later phase should not start after cancellation")
		return &agent.AgentOutput{}, nil
	}))

	// Cancel between phases 0 and 1.
	bus := event.NewBus(nil)
	bus.Subscribe(event.TypePhaseCompleted, func(e event.Event) {
		if done, ok := e.(event.PhaseCompletedEvent); ok && done.Index == 0 {
			cancel()
		}
	})
	o := New(reg, WithBus(bus))

	g, err := o.BuildGraph([]agent.Task{
		{ID: "a", Kind: "first"},
		{ID: "b", Kind: "ok"},
		{ID: "c", Kind: "ok"},
	}, []Edge{{TaskID: "b", DependsOn: "a"}, {TaskID: "c", DependsOn: "b"}})
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	results, err := o.Run(ctx, g, testConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Success {
		t.Errorf("a: want success, got %s", results[0].Error)
	}
	for _, r := range results[1:] {
		if r.Success || !errors.Is(r.Err, errors.ErrCanceled) {
			t.Errorf("%s: success=%v err=%v, want ErrCanceled", r.TaskID, r.Success, r.Err)
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	o := New(agent.NewRegistry())
	g, err := o.BuildGraph(tasks("x", "a"), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = o.Run(context.Background(), g, executor.Config{MaxConcurrency: 0, Timeout: time.Second})
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("Run() error = %v, want ErrInvalidConfig", err)
	}
}

func TestRun_EmptyGraph(t *testing.T) {
	o := New(agent.NewRegistry())
	g, err := o.BuildGraph(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := o.Run(context.Background(), g, testConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func adviceAgent(recs ...agent.Recommendation) agent.Agent {
	return agent.Func(func(_ context.Context, task agent.Task, _ agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
		out := &agent.AgentOutput{Findings: []agent.Finding{
			{Severity: agent.SeverityWarning, Category: "style", Message: "shared finding"},
			{Severity: agent.SeverityCritical, Category: "security", Message: "from " + task.ID},
		}}
		for i := range recs {
			out.Suggestions = append(out.Suggestions, agent.Suggestion{Title: recs[i].Content, Recommendation: &recs[i]})
		}
		return out, nil
	})
}

func TestExecute(t *testing.T) {
	reg := agent.NewRegistry()
	reg.MustRegister("react", adviceAgent(agent.Recommendation{
		Domain: "web", Category: "framework", Content: "Use React", Technologies: []string{"React"},
	}))
	reg.MustRegister("vue", adviceAgent(agent.Recommendation{
		Domain: "web", Category: "framework", Content: "Use Vue", Technologies: []string{"Vue"},
	}))

	bus := event.NewBus(nil)
	var mu sync.Mutex
	seen := make(map[string]int)
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.EventType()]++
	})
	collector := metrics.New()
	collector.Attach(bus)

	o := New(reg, WithBus(bus), WithMetrics(collector))
	report, err := o.Execute(context.Background(), Request{
		Tasks: []agent.Task{{ID: "one", Kind: "react"}, {ID: "two", Kind: "vue"}},
		Recommendations: []agent.Recommendation{
			{Domain: "backend", Category: "db", Content: "Use Postgres", Technologies: []string{"Postgres"}},
		},
		Config:          testConfig(),
		DetectConflicts: true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.RunID == "" {
		t.Error("RunID is empty")
	}
	if report.Succeeded != 2 || report.Failed != 0 || report.Phases != 1 {
		t.Errorf("succeeded=%d failed=%d phases=%d", report.Succeeded, report.Failed, report.Phases)
	}

	// Two critical findings plus one shared warning after dedup.
	findings := report.Aggregate.Findings
	if len(findings) != 3 || report.Aggregate.Stats.Duplicates != 1 {
		t.Fatalf("findings = %+v, duplicates = %d", findings, report.Aggregate.Stats.Duplicates)
	}
	if findings[0].Severity != agent.SeverityCritical || findings[2].Severity != agent.SeverityWarning {
		t.Errorf("findings not ordered by severity: %+v", findings)
	}

	if len(report.Recommendations) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(report.Recommendations))
	}
	if report.Recommendations[0].Source != "react/one" {
		t.Errorf("Source = %q, want react/one", report.Recommendations[0].Source)
	}
	if report.Conflicts == nil || len(report.Conflicts.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want one", report.Conflicts)
	}
	if report.Conflicts.Conflicts[0].Type != conflict.Incompatible {
		t.Errorf("conflict type = %v", report.Conflicts.Conflicts[0].Type)
	}

	mu.Lock()
	defer mu.Unlock()
	for typ, want := range map[string]int{
		event.TypeRunStarted:        1,
		event.TypePhaseStarted:      1,
		event.TypeTaskStarted:       2,
		event.TypeTaskCompleted:     2,
		event.TypePhaseCompleted:    1,
		event.TypeRunCompleted:      1,
		event.TypeConflictsDetected: 1,
	} {
		if seen[typ] != want {
			t.Errorf("%s events = %d, want %d", typ, seen[typ], want)
		}
	}
}

func TestExecute_ConflictsDisabled(t *testing.T) {
	reg := agent.NewRegistry()
	reg.MustRegister("react", adviceAgent(agent.Recommendation{Domain: "web", Category: "framework", Content: "Use React"}))
	o := New(reg)

	report, err := o.Execute(context.Background(), Request{
		Tasks:  []agent.Task{{ID: "one", Kind: "react"}},
		Config: testConfig(),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Conflicts != nil {
		t.Errorf("Conflicts = %+v, want nil", report.Conflicts)
	}
}

func TestExecute_InvalidGraph(t *testing.T) {
	o := New(agent.NewRegistry())
	_, err := o.Execute(context.Background(), Request{
		Tasks:  tasks("x", "a"),
		Edges:  []Edge{{TaskID: "a", DependsOn: "a"}},
		Config: testConfig(),
	})
	if !errors.Is(err, errors.ErrDependencyCycle) {
		t.Errorf("Execute() error = %v, want ErrDependencyCycle", err)
	}
}

func TestExecute_CountsTimeouts(t *testing.T) {
	reg := agent.NewRegistry()
	reg.MustRegister("slow", agent.Func(func(ctx context.Context, _ agent.Task, _ agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	o := New(reg)

	report, err := o.Execute(context.Background(), Request{
		Tasks:  tasks("slow", "a"),
		Config: executor.Config{MaxConcurrency: 1, Timeout: 20 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.TimedOut != 1 || report.Failed != 1 {
		t.Errorf("timed_out=%d failed=%d, want 1/1", report.TimedOut, report.Failed)
	}
	if len(report.Aggregate.Findings) != 0 {
		t.Errorf("findings = %+v, want none", report.Aggregate.Findings)
	}
}

func TestDetectAndReportConflicts_None(t *testing.T) {
	o := New(agent.NewRegistry())
	r := o.DetectAndReportConflicts(nil)
	if len(r.Conflicts) != 0 {
		t.Errorf("Conflicts = %+v", r.Conflicts)
	}
	if !strings.Contains(strings.ToLower(r.Analysis), "no conflicts") {
		t.Errorf("Analysis = %q", r.Analysis)
	}
}

func TestExtractRecommendations(t *testing.T) {
	o := New(agent.NewRegistry())
	rec := agent.Recommendation{Domain: "web", Category: "ui", Content: "Use Tailwind"}
	outputs := []*agent.AgentOutput{
		{Suggestions: []agent.Suggestion{{Title: "plain"}}},
		{
			Suggestions: []agent.Suggestion{{Title: "rec", Recommendation: &rec}},
			Metadata:    agent.Metadata{WorkerID: "w1"},
		},
	}

	recs := o.ExtractRecommendations(outputs)
	if len(recs) != 1 || recs[0].Source != "w1" || recs[0].Content != "Use Tailwind" {
		t.Errorf("recs = %+v", recs)
	}
	if got := o.ExtractRecommendations(nil); got == nil || len(got) != 0 {
		t.Errorf("ExtractRecommendations(nil) = %#v, want empty slice", got)
	}
}
