package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nettally/nettally/pkg/collect"
	"github.com/nettally/nettally/pkg/history"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/normalize"
	"github.com/nettally/nettally/pkg/pipeline"
	"github.com/nettally/nettally/pkg/reconcile"
	"github.com/nettally/nettally/pkg/task"
	"github.com/nettally/nettally/pkg/util"
)

// runRequest is the shared body of collect, sync, and pipeline-run calls.
// Absent fields keep the defaults set before decoding.
type runRequest struct {
	Devices   []string    `json:"devices,omitempty"` // hosts; empty means all enabled
	AsyncMode bool        `json:"async_mode"`
	DryRun    bool        `json:"dry_run"`
	Targets   []string    `json:"targets,omitempty"` // sync only
	MACFormat string      `json:"mac_format,omitempty"`
	Options   syncOptions `json:"options"`
}

type syncOptions struct {
	CreateMissing        bool     `json:"create_missing"`
	UpdateExisting       bool     `json:"update_existing"`
	Cleanup              bool     `json:"cleanup"`
	Tenant               string   `json:"tenant,omitempty"`
	Site                 string   `json:"site,omitempty"`
	Role                 string   `json:"role,omitempty"`
	ExcludeInterfaces    []string `json:"exclude_interfaces,omitempty"`
	SkipUnknownNeighbors bool     `json:"skip_unknown_neighbors"`
	TrustRemoteEnabled   bool     `json:"trust_remote_enabled"`
}

func defaultRunRequest() runRequest {
	return runRequest{Options: syncOptions{CreateMissing: true, UpdateExisting: true}}
}

func (o syncOptions) reconcileOptions() reconcile.Options {
	return reconcile.Options{
		CreateMissing:        o.CreateMissing,
		UpdateExisting:       o.UpdateExisting,
		Cleanup:              o.Cleanup,
		Tenant:               o.Tenant,
		Site:                 o.Site,
		Role:                 o.Role,
		ExcludeInterfaces:    o.ExcludeInterfaces,
		SkipUnknownNeighbors: o.SkipUnknownNeighbors,
		TrustRemoteEnabled:   o.TrustRemoteEnabled,
	}
}

// ============================================================================
// Devices
// ============================================================================

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.Devices.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(devices), "devices": devices})
}

func (s *Server) handleUpsertDevice(w http.ResponseWriter, r *http.Request) {
	var dev model.Device
	if err := decodeBody(r, &dev); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Devices.Upsert(dev); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"host": dev.Host})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.Devices.Delete(mux.Vars(r)["host"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectDevices resolves the request's device list against the catalog.
// Unknown hosts are an input error.
func (s *Server) selectDevices(hosts []string) ([]*model.Device, error) {
	enabled, err := s.Devices.Enabled()
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return enabled, nil
	}
	byHost := make(map[string]*model.Device, len(enabled))
	for _, dev := range enabled {
		byHost[dev.Host] = dev
	}
	var out []*model.Device
	for _, host := range hosts {
		dev, ok := byHost[host]
		if !ok {
			return nil, fmt.Errorf("%w: unknown or disabled device %q", util.ErrValidationFailed, host)
		}
		out = append(out, dev)
	}
	return out, nil
}

// ============================================================================
// Collect
// ============================================================================

var collectTargets = map[string]bool{
	pipeline.TargetDeviceInfo: true,
	pipeline.TargetInterfaces: true,
	pipeline.TargetMACTable:   true,
	pipeline.TargetLLDP:       true,
	pipeline.TargetCDP:        true,
	pipeline.TargetNeighbors:  true,
	pipeline.TargetInventory:  true,
	pipeline.TargetConfigs:    true,
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]
	if !collectTargets[target] {
		badRequestf(w, "unknown collection target %q", target)
		return
	}
	req := defaultRunRequest()
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	creds := credentials(r)
	if creds.Username == "" {
		badRequestf(w, "missing %s header", headerSSHUsername)
		return
	}
	devices, err := s.selectDevices(req.Devices)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.AsyncMode {
		id := s.Tasks.Create("collect:"+target, 1)
		go s.runTask(id, func(ctx context.Context) (interface{}, error) {
			records, devErrs := s.collectTarget(ctx, target, devices, creds, &req)
			return collectResponse(records, devErrs), collectError(devices, devErrs)
		})
		writeJSON(w, http.StatusOK, map[string]string{"task_id": id})
		return
	}

	records, devErrs := s.collectTarget(r.Context(), target, devices, creds, &req)
	writeJSON(w, http.StatusOK, collectResponse(records, devErrs))
}

func (s *Server) collectTarget(ctx context.Context, target string, devices []*model.Device, creds *model.Credentials, req *runRequest) (interface{}, []collect.DeviceError) {
	switch target {
	case pipeline.TargetDeviceInfo:
		return s.Collector.DeviceInfo(ctx, devices, creds)
	case pipeline.TargetInterfaces:
		return s.Collector.Interfaces(ctx, devices, creds)
	case pipeline.TargetMACTable:
		return s.Collector.MACTable(ctx, devices, creds, collect.MACTableOptions{
			Format: normalize.MACFormat(req.MACFormat),
		})
	case pipeline.TargetLLDP:
		return s.Collector.Neighbors(ctx, devices, creds, collect.NeighborOptions{LLDP: true})
	case pipeline.TargetCDP:
		return s.Collector.Neighbors(ctx, devices, creds, collect.NeighborOptions{CDP: true})
	case pipeline.TargetNeighbors:
		return s.Collector.Neighbors(ctx, devices, creds, collect.NeighborOptions{LLDP: true, CDP: true})
	case pipeline.TargetInventory:
		return s.Collector.Inventory(ctx, devices, creds)
	case pipeline.TargetConfigs:
		return s.Collector.Configs(ctx, devices, creds)
	}
	return nil, nil
}

func collectResponse(records interface{}, devErrs []collect.DeviceError) map[string]interface{} {
	resp := map[string]interface{}{"records": records}
	if len(devErrs) > 0 {
		msgs := make([]string, len(devErrs))
		for i, de := range devErrs {
			msgs[i] = de.Host + ": " + de.Msg
		}
		resp["errors"] = msgs
	}
	return resp
}

// collectError reports failure only when every device failed, matching the
// pipeline executor's step semantics.
func collectError(devices []*model.Device, devErrs []collect.DeviceError) error {
	if len(devices) > 0 && len(devErrs) == len(devices) {
		return fmt.Errorf("all %d devices failed", len(devices))
	}
	return nil
}

// ============================================================================
// Sync and pipeline runs
// ============================================================================

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req := defaultRunRequest()
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = []string{pipeline.TargetAll}
	}

	p := &pipeline.Pipeline{ID: "adhoc-sync", Name: "ad-hoc sync", Enabled: true}
	for _, target := range targets {
		p.Steps = append(p.Steps, pipeline.Step{
			ID:      "sync-" + target,
			Kind:    pipeline.StepSync,
			Target:  target,
			Enabled: true,
		})
	}
	if err := p.Validate(); err != nil {
		writeError(w, err)
		return
	}
	s.runPipeline(w, r, p, &req, "sync")
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.Pipelines.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	req := defaultRunRequest()
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.runPipeline(w, r, p, &req, "pipeline:"+p.ID)
}

// runPipeline is the shared run path: resolve devices and credentials, then
// execute inline or behind a task.
func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, p *pipeline.Pipeline, req *runRequest, operation string) {
	creds := credentials(r)
	if creds.Username == "" {
		badRequestf(w, "missing %s header", headerSSHUsername)
		return
	}
	inv := inventoryConfig(r)
	if needsInventory(p) && inv.URL == "" {
		badRequestf(w, "missing %s header", headerInventoryURL)
		return
	}
	devices, err := s.selectDevices(req.Devices)
	if err != nil {
		writeError(w, err)
		return
	}

	rc := &pipeline.RunContext{
		Devices:     devices,
		Credentials: creds,
		Inventory:   inv,
		DryRun:      req.DryRun,
		SyncOptions: req.Options.reconcileOptions(),
	}

	if req.AsyncMode {
		id := s.Tasks.Create(operation, len(p.EnabledSteps()))
		go s.runTask(id, func(ctx context.Context) (interface{}, error) {
			res := s.execute(ctx, p, rc, id)
			s.record(operation, res, devices)
			if res.Status == "failed" {
				return res, fmt.Errorf("pipeline %s failed", p.ID)
			}
			return res, nil
		})
		writeJSON(w, http.StatusOK, map[string]string{"task_id": id})
		return
	}

	res := s.execute(r.Context(), p, rc, "")
	s.record(operation, res, devices)
	writeJSON(w, http.StatusOK, res)
}

func needsInventory(p *pipeline.Pipeline) bool {
	for _, step := range p.EnabledSteps() {
		if step.Kind == pipeline.StepSync {
			return true
		}
	}
	return false
}

// execute runs one pipeline; when taskID is set the step callbacks feed
// task progress.
func (s *Server) execute(ctx context.Context, p *pipeline.Pipeline, rc *pipeline.RunContext, taskID string) *pipeline.Result {
	exec := &pipeline.Executor{
		Collector: s.Collector,
		NewSyncer: s.NewSyncer,
		Exporter:  s.Exporter,
	}
	if taskID != "" {
		total := len(p.EnabledSteps())
		done := 0
		exec.OnStepStart = func(step pipeline.Step) {
			s.Tasks.Update(taskID, done*100/max(total, 1), done+1, "running "+step.ID)
		}
		exec.OnStepComplete = func(step pipeline.Step, res pipeline.StepResult) {
			done++
			s.Tasks.Update(taskID, done*100/max(total, 1), done, string(res.Status)+" "+step.ID)
		}
	}
	return exec.Run(ctx, p, rc)
}

// runTask drives the task lifecycle around fn and honors cancellation.
func (s *Server) runTask(id string, fn func(ctx context.Context) (interface{}, error)) {
	if err := s.Tasks.Start(id); err != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if sig, err := s.Tasks.CancelSignal(id); err == nil {
		go func() {
			select {
			case <-sig:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	result, err := fn(ctx)
	if err != nil {
		s.Tasks.Fail(id, err.Error())
		return
	}
	s.Tasks.Complete(id, result)
}

// record appends a pipeline run to the history store.
func (s *Server) record(operation string, res *pipeline.Result, devices []*model.Device) {
	if s.History == nil {
		return
	}
	entry := history.Entry{
		Operation:   operation,
		Status:      historyStatus(res),
		DeviceCount: len(devices),
		DurationMS:  int64(res.Duration / time.Millisecond),
		Stats:       mergedStats(res),
	}
	for _, dev := range devices {
		entry.Devices = append(entry.Devices, dev.Host)
	}
	for _, step := range res.Steps {
		if step.Error != "" {
			entry.Error = step.Error
			break
		}
	}
	if _, err := s.History.Append(entry); err != nil {
		util.Logger.WithError(err).Warn("record history")
	}
}

func historyStatus(res *pipeline.Result) string {
	switch res.Status {
	case "completed":
		for _, step := range res.Steps {
			if step.Status == pipeline.StepSkipped {
				return "partial"
			}
		}
		return "success"
	case "cancelled":
		return "partial"
	}
	return "error"
}

func mergedStats(res *pipeline.Result) reconcile.Result {
	merged := make(reconcile.Result)
	for _, step := range res.Steps {
		for kind, stats := range step.Sync {
			merged[kind] = stats
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// ============================================================================
// Pipelines CRUD
// ============================================================================

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.Pipelines.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(pipelines), "pipelines": pipelines})
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.Pipelines.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSavePipeline(w http.ResponseWriter, r *http.Request) {
	var p pipeline.Pipeline
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Pipelines.Save(&p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": p.ID})
}

func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.Pipelines.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Tasks
// ============================================================================

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.Tasks.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(tasks), "tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.Tasks.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if err := s.Tasks.Cancel(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": mux.Vars(r)["id"], "status": string(task.StatusCancelled)})
}

// ============================================================================
// History
// ============================================================================

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intQuery(q.Get("limit"), 50)
	offset := intQuery(q.Get("offset"), 0)
	entries, total := s.History.List(history.Filter{
		Operation: q.Get("operation"),
		Status:    q.Get("status"),
	}, limit, offset)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"entries": entries,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	e, err := s.History.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.History.Stats())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.History.Clear(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intQuery(s string, def int) int {
	if s == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 {
		return def
	}
	return n
}
