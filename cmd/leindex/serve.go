// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/app"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/monitoring"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/search"
)

// indexJob tracks one async "leindex index" request submitted over
// HTTP, mirroring the teacher's cmd/cie/serve.go indexJob/progress
// pattern — the same async-job-with-polling shape, retargeted from a
// single-project CozoDB pipeline run to this spec's multi-project
// indexing call.
type indexJob struct {
	ID        string     `json:"job_id"`
	ProjectID string     `json:"project_id"`
	Status    string     `json:"status"` // "running", "completed", "failed"
	Result    *jobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type jobResult struct {
	FilesProcessed int `json:"files_processed"`
	SymbolsFound   int `json:"symbols_found"`
}

// server holds the HTTP layer's state: the wired App plus the job
// table for async indexing requests.
type server struct {
	app    *app.App
	jobs   map[string]*indexJob
	jobsMu sync.RWMutex
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", getEnv("LEINDEX_PORT", "8080"), "port to listen on")
	dataDir := fs.String("data-dir", getEnv("LEINDEX_DATA_DIR", defaultDataDir()), "data directory for the registry, backups, and config")
	dev := fs.Bool("dev", false, "use the development (console) log encoder instead of JSON")
	_ = fs.Parse(args)

	a, err := app.New(*dataDir, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex serve: %v\n", err)
		return 1
	}
	defer a.Close()

	srv := &server{app: a, jobs: make(map[string]*indexJob)}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(monitoring.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/status", srv.handleStatus)
	mux.HandleFunc("/v1/index", srv.handleIndex)
	mux.HandleFunc("/v1/index/", srv.handleIndexStatus)
	mux.HandleFunc("/v1/search", srv.handleSearch)

	httpServer := &http.Server{
		Addr:              ":" + *port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		a.Logger.Info("leindex.shutdown_signal_received")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}()

	a.Logger.Info("leindex.serve_starting", zap.String("port", *port), zap.String("data_dir", *dataDir))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "leindex serve: %v\n", err)
		return 1
	}
	return 0
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := monitoring.RunHealthChecks(
		func() monitoring.ComponentHealth {
			ok, err := s.app.Tracker.Healthy()
			if err != nil {
				return monitoring.ComponentHealth{Component: "memory_tracker", Status: monitoring.HealthDegraded, Detail: err.Error()}
			}
			if !ok {
				return monitoring.ComponentHealth{Component: "memory_tracker", Status: monitoring.HealthDown}
			}
			return monitoring.ComponentHealth{Component: "memory_tracker", Status: monitoring.HealthOK}
		},
		func() monitoring.ComponentHealth {
			if _, err := s.app.Registry.ListAll(); err != nil {
				return monitoring.ComponentHealth{Component: "registry", Status: monitoring.HealthDown, Detail: err.Error()}
			}
			return monitoring.ComponentHealth{Component: "registry", Status: monitoring.HealthOK}
		},
	)

	w.Header().Set("Content-Type", "application/json")
	if report.Overall == monitoring.HealthDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	dashboard := s.app.Tier1.GetDashboardData()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dashboard)
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ProjectID string `json:"project_id"`
		RepoPath  string `json:"repo_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.RepoPath == "" {
		http.Error(w, "repo_path is required", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		req.ProjectID = uuid.NewString()
	}
	if _, err := os.Stat(req.RepoPath); os.IsNotExist(err) {
		http.Error(w, fmt.Sprintf("repo path not found: %s", req.RepoPath), http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	job := &indexJob{ID: jobID, ProjectID: req.ProjectID, Status: "running", StartedAt: time.Now()}

	s.jobsMu.Lock()
	s.jobs[jobID] = job
	s.jobsMu.Unlock()

	go s.runIndexJob(job, req.ProjectID, req.RepoPath)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"job_id": jobID, "project_id": req.ProjectID, "status": "running"})
}

func (s *server) runIndexJob(job *indexJob, projectID, repoPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stats, err := s.app.IndexProject(ctx, projectID, repoPath)
	now := time.Now()

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job.EndedAt = &now
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
		s.app.Logger.Warn("leindex.index_job_failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	job.Status = "completed"
	job.Result = &jobResult{FilesProcessed: stats.FileCount, SymbolsFound: stats.SymbolCount}
}

func (s *server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/v1/index/")
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	s.jobsMu.RLock()
	job, ok := s.jobs[jobID]
	s.jobsMu.RUnlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Pattern    string   `json:"pattern"`
		ProjectIDs []string `json:"project_ids"`
		MaxResults int      `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 20
	}

	start := time.Now()
	result, err := search.CrossProjectSearch(r.Context(), s.app.Router, s.app, req.Pattern, req.ProjectIDs, req.MaxResults, search.DefaultBackendTimeout)
	monitoring.RecordQuery("cross_project")
	monitoring.ObserveBackendSearch("router", time.Since(start))
	if err != nil {
		monitoring.RecordCrossProjectStatus("error")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	monitoring.RecordCrossProjectStatus("ok")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leindex"
	}
	return home + "/.leindex/data"
}
