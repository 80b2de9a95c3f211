package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recorder struct {
	outcomes []Outcome
}

func (r *recorder) ObserveRun(o Outcome) { r.outcomes = append(r.outcomes, o) }

func appendStage(name string, trace *[]string) Stage[string] {
	return Stage[string]{Name: name, Run: func(_ context.Context, in string) (Result[string], error) {
		*trace = append(*trace, name)
		return Continue(in + name), nil
	}}
}

func TestRunCompletesAllStagesInOrder(t *testing.T) {
	var trace []string
	var final string
	p := New("test",
		appendStage("a", &trace),
		appendStage("b", &trace),
		Stage[string]{Name: "capture", Run: func(_ context.Context, in string) (Result[string], error) {
			final = in
			return Continue(in), nil
		}},
	)
	out := p.Run(context.Background(), ">")
	if out.Status != StatusCompleted || out.Ran != 3 || out.Stage != "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if strings.Join(trace, ",") != "a,b" || final != ">ab" {
		t.Fatalf("stages did not see chained values: trace=%v final=%q", trace, final)
	}
	if out.RunID == "" {
		t.Fatal("expected run id")
	}
}

func TestRunStopsAtFirstStop(t *testing.T) {
	var trace []string
	p := New("test",
		appendStage("a", &trace),
		Stage[string]{Name: "gate", Run: func(context.Context, string) (Result[string], error) {
			return Stop[string](), nil
		}},
		appendStage("never", &trace),
	)
	out := p.Run(context.Background(), "")
	if out.Status != StatusHalted || out.Stage != "gate" || out.Ran != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(trace) != 1 {
		t.Fatalf("stage after stop executed: %v", trace)
	}
}

func TestRunReportsStageError(t *testing.T) {
	boom := errors.New("boom")
	var trace []string
	rec := &recorder{}
	p := New("test",
		Stage[string]{Name: "call", Run: func(context.Context, string) (Result[string], error) {
			return Result[string]{}, boom
		}},
		appendStage("never", &trace),
	).WithObserver(rec)
	out := p.Run(context.Background(), "")
	if out.Status != StatusFailed || !errors.Is(out.Err, boom) || out.Stage != "call" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(trace) != 0 {
		t.Fatal("stage after failure executed")
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0].RunID != out.RunID {
		t.Fatalf("observer not notified: %+v", rec.outcomes)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	p := New("test", Stage[string]{Name: "explode", Run: func(context.Context, string) (Result[string], error) {
		var m map[string]int
		m["x"] = 1
		return Continue(""), nil
	}})
	out := p.Run(context.Background(), "")
	if out.Status != StatusFailed || out.Err == nil || !strings.Contains(out.Err.Error(), "explode") {
		t.Fatalf("expected recovered panic, got %+v", out)
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	var trace []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := New("test", appendStage("a", &trace)).Run(ctx, "")
	if out.Status != StatusFailed || out.Ran != 0 || len(trace) != 0 {
		t.Fatalf("expected no stage to run, got %+v", out)
	}
}

func TestStagesListsNames(t *testing.T) {
	var trace []string
	p := New("test", appendStage("a", &trace), appendStage("b", &trace))
	if got := strings.Join(p.Stages(), ","); got != "a,b" {
		t.Fatalf("unexpected stage names: %s", got)
	}
	if p.Name() != "test" {
		t.Fatalf("unexpected name: %s", p.Name())
	}
}
