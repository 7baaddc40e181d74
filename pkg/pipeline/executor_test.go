package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nettally/nettally/pkg/collect"
	"github.com/nettally/nettally/pkg/connect"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/reconcile"
)

// testExecutor runs against zero devices and an empty stub inventory, which
// exercises ordering, gating, and auto-collect without any I/O of substance.
func testExecutor(t *testing.T) (*Executor, *RunContext) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]interface{}{"count": 0, "results": []int{}})
			return
		}
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	exec := &Executor{
		Collector: collect.New(connect.Options{}, 1, ""),
		NewSyncer: func(cfg model.InventoryConfig, opts reconcile.Options) *reconcile.Syncer {
			return reconcile.New(netbox.NewClient(cfg), opts)
		},
	}
	rc := &RunContext{Inventory: model.InventoryConfig{URL: srv.URL, Token: "t"}}
	return exec, rc
}

func stepByID(t *testing.T, res *Result, id string) StepResult {
	t.Helper()
	for _, sr := range res.Steps {
		if sr.StepID == id {
			return sr
		}
	}
	t.Fatalf("no step %q in %+v", id, res.Steps)
	return StepResult{}
}

// ============================================================================
// Executor Tests
// ============================================================================

func TestRunValidationFailure(t *testing.T) {
	exec, rc := testExecutor(t)
	p := &Pipeline{ID: "bad", Steps: []Step{step("a", StepSync, TargetInterfaces, "nope")}}

	res := exec.Run(context.Background(), p, rc)
	if res.Status != "failed" {
		t.Fatalf("status = %q", res.Status)
	}
	if len(res.Steps) != 1 || res.Steps[0].StepID != "validation" {
		t.Fatalf("steps = %+v, want synthetic validation step", res.Steps)
	}
}

// A step declared before its dependency is skipped with the canonical reason,
// and skipping does not abort the run.
func TestRunDependencyGate(t *testing.T) {
	exec, rc := testExecutor(t)
	p := &Pipeline{ID: "p", Steps: []Step{
		step("early_sync", StepSync, TargetInterfaces, "collect_if"),
		step("collect_if", StepCollect, TargetInterfaces),
	}}

	res := exec.Run(context.Background(), p, rc)
	if res.Status != "completed" {
		t.Fatalf("status = %q: %+v", res.Status, res.Steps)
	}
	early := stepByID(t, res, "early_sync")
	if early.Status != StepSkipped || early.Reason != "Dependencies not met" {
		t.Errorf("early step = %+v", early)
	}
	if stepByID(t, res, "collect_if").Status != StepCompleted {
		t.Errorf("collect step = %+v", stepByID(t, res, "collect_if"))
	}
}

// A sync step with no prior collect synthesizes the collection and still
// reports exactly one explicit step.
func TestRunAutoCollect(t *testing.T) {
	exec, rc := testExecutor(t)
	p := &Pipeline{ID: "p", Steps: []Step{
		step("sync_if", StepSync, TargetInterfaces),
	}}

	res := exec.Run(context.Background(), p, rc)
	if res.Status != "completed" {
		t.Fatalf("status = %q: %+v", res.Status, res.Steps)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %+v, want only the declared step", res.Steps)
	}
	if !rc.Collected.Has(TargetInterfaces) {
		t.Error("auto-collect did not populate the run context")
	}
}

// Cables pull neighbor data, ip_addresses pull interface data.
func TestRunSyncTargetMapping(t *testing.T) {
	exec, rc := testExecutor(t)
	p := &Pipeline{ID: "p", Steps: []Step{
		step("sync_cables", StepSync, TargetCables),
		step("sync_ips", StepSync, TargetIPAddresses),
	}}

	res := exec.Run(context.Background(), p, rc)
	if res.Status != "completed" {
		t.Fatalf("status = %q: %+v", res.Status, res.Steps)
	}
	if !rc.Collected.Has(TargetNeighbors) {
		t.Error("cable sync should auto-collect neighbors")
	}
	if !rc.Collected.Has(TargetInterfaces) {
		t.Error("ip sync should auto-collect interfaces")
	}
}

func TestRunStepCallbacks(t *testing.T) {
	exec, rc := testExecutor(t)
	var started, completed []string
	exec.OnStepStart = func(s Step) { started = append(started, s.ID) }
	exec.OnStepComplete = func(s Step, r StepResult) { completed = append(completed, s.ID) }

	p := &Pipeline{ID: "p", Steps: []Step{
		step("a", StepCollect, TargetInterfaces),
		step("b", StepSync, TargetInterfaces, "a"),
	}}
	exec.Run(context.Background(), p, rc)

	if len(started) != 2 || started[0] != "a" || started[1] != "b" {
		t.Errorf("started = %v", started)
	}
	if len(completed) != 2 {
		t.Errorf("completed = %v", completed)
	}
}

func TestRunCancelledBetweenSteps(t *testing.T) {
	exec, rc := testExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())

	exec.OnStepComplete = func(s Step, r StepResult) {
		if s.ID == "a" {
			cancel()
		}
	}
	p := &Pipeline{ID: "p", Steps: []Step{
		step("a", StepCollect, TargetInterfaces),
		step("b", StepCollect, TargetInventory),
		step("c", StepCollect, TargetConfigs),
	}}

	res := exec.Run(ctx, p, rc)
	if res.Status != "cancelled" {
		t.Fatalf("status = %q", res.Status)
	}
	if len(res.Steps) != 1 {
		t.Errorf("steps = %+v, want only step a", res.Steps)
	}
}

func TestRunUnknownTargetFails(t *testing.T) {
	exec, rc := testExecutor(t)
	p := &Pipeline{ID: "p", Steps: []Step{
		step("a", StepCollect, "flux_capacitors"),
		step("b", StepCollect, TargetInterfaces),
	}}

	res := exec.Run(context.Background(), p, rc)
	if res.Status != "failed" {
		t.Fatalf("status = %q", res.Status)
	}
	if len(res.Steps) != 1 {
		t.Errorf("failed step must abort the rest: %+v", res.Steps)
	}
}

// ============================================================================
// Repo Tests
// ============================================================================

func TestRepoRoundTrip(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := &Pipeline{ID: "nightly", Name: "Nightly sync", Enabled: true, Steps: []Step{
		step("collect_if", StepCollect, TargetInterfaces),
		step("sync_if", StepSync, TargetInterfaces, "collect_if"),
	}}
	if err := repo.Save(p); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get("nightly")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != p.Name || len(got.Steps) != 2 || got.Steps[1].DependsOn[0] != "collect_if" {
		t.Errorf("round trip = %+v", got)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	if err := repo.Delete("nightly"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get("nightly"); err == nil {
		t.Error("deleted pipeline still loads")
	}
}

func TestRepoSaveRejectsInvalid(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := &Pipeline{ID: "bad", Steps: []Step{step("a", StepSync, TargetInterfaces, "missing")}}
	if err := repo.Save(p); err == nil {
		t.Error("invalid pipeline saved")
	}
}
