// Package api is the HTTP adapter over the collectors, reconciler, pipeline
// executor, task manager, and history store. SSH and remote-inventory
// credentials arrive in request headers, live for the request (or the spawned
// task), and are never persisted or logged.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nettally/nettally/pkg/collect"
	"github.com/nettally/nettally/pkg/history"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/pipeline"
	"github.com/nettally/nettally/pkg/store"
	"github.com/nettally/nettally/pkg/task"
	"github.com/nettally/nettally/pkg/util"
	"github.com/nettally/nettally/pkg/version"
)

// Credential headers. Values are read per request and handed to the
// collector or reconciler by pointer only.
const (
	headerSSHUsername    = "X-SSH-Username"
	headerSSHPassword    = "X-SSH-Password"
	headerSSHSecret      = "X-SSH-Secret"
	headerInventoryURL   = "X-Inventory-URL"
	headerInventoryToken = "X-Inventory-Token"
)

// Server wires the HTTP surface to the domain components.
type Server struct {
	Devices   *store.DeviceRepo
	Pipelines *pipeline.Repo
	Tasks     *task.Manager
	History   *history.Store
	Collector *collect.Collector
	NewSyncer pipeline.SyncerFactory
	Exporter  pipeline.Exporter
}

// Router builds the full route table under /api/v1.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(logRequests)

	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	api.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.handleUpsertDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{host}", s.handleDeleteDevice).Methods(http.MethodDelete)

	api.HandleFunc("/collect/{target}", s.handleCollect).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)

	api.HandleFunc("/pipelines", s.handleListPipelines).Methods(http.MethodGet)
	api.HandleFunc("/pipelines", s.handleSavePipeline).Methods(http.MethodPost)
	api.HandleFunc("/pipelines/{id}", s.handleGetPipeline).Methods(http.MethodGet)
	api.HandleFunc("/pipelines/{id}", s.handleDeletePipeline).Methods(http.MethodDelete)
	api.HandleFunc("/pipelines/{id}/run", s.handleRunPipeline).Methods(http.MethodPost)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/cancel", s.handleCancelTask).Methods(http.MethodPost)

	api.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/history/stats", s.handleHistoryStats).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleGetHistory).Methods(http.MethodGet)

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // inline collect runs can be slow
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	util.Infof("listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		util.Logger.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration", time.Since(start).Round(time.Millisecond).String()).
			Debug("request")
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.GitCommit,
	})
}

// credentials reads SSH login material from the request headers.
func credentials(r *http.Request) *model.Credentials {
	return &model.Credentials{
		Username:     r.Header.Get(headerSSHUsername),
		Password:     r.Header.Get(headerSSHPassword),
		EnableSecret: r.Header.Get(headerSSHSecret),
	}
}

// inventoryConfig reads the remote-inventory endpoint from the headers.
func inventoryConfig(r *http.Request) model.InventoryConfig {
	return model.InventoryConfig{
		URL:   r.Header.Get(headerInventoryURL),
		Token: r.Header.Get(headerInventoryToken),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		util.Logger.WithError(err).Warn("encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, util.ErrNotFound), errors.Is(err, util.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, util.ErrValidationFailed), errors.Is(err, util.ErrTaskTerminal):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequestf(w http.ResponseWriter, format string, args ...interface{}) {
	writeError(w, fmt.Errorf("%w: %s", util.ErrValidationFailed, fmt.Sprintf(format, args...)))
}

// decodeBody decodes an optional JSON body into a prefilled value, so absent
// keys keep their defaults. An empty body is fine.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: parse request body: %v", util.ErrValidationFailed, err)
	}
	return nil
}
