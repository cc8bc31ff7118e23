package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/cexll/firstfix/internal/concurrency"
	"github.com/cexll/firstfix/internal/executor"
	"github.com/cexll/firstfix/internal/github"
	"github.com/cexll/firstfix/internal/runstore"
	"github.com/cexll/firstfix/internal/web"
)

var _ executor.RunRecorder = (*runstore.Recorder)(nil)

// pipelineRunner is satisfied by *executor.Pipeline.
type pipelineRunner interface {
	Run(ctx context.Context, rec executor.RunRecorder) (*executor.Result, error)
}

// scheduler starts pipeline passes in the background, one at a time.
type scheduler struct {
	ctx      context.Context
	pipeline pipelineRunner
	runs     *runstore.Store
	locks    *concurrency.Manager
	wg       sync.WaitGroup
}

func newScheduler(ctx context.Context, pipeline pipelineRunner, runs *runstore.Store) *scheduler {
	return &scheduler{
		ctx:      ctx,
		pipeline: pipeline,
		runs:     runs,
		locks:    concurrency.NewManager(),
	}
}

// trigger starts a pass unless one is already running.
func (s *scheduler) trigger() (string, bool) {
	if !s.locks.TryAcquire(concurrency.PipelineKey) {
		return "", false
	}
	id := s.runs.Create()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.locks.Release(concurrency.PipelineKey)
		s.execute(id)
	}()
	return id, true
}

func (s *scheduler) busy() bool {
	return s.locks.Busy(concurrency.PipelineKey)
}

func (s *scheduler) execute(id string) {
	log.Printf("[Serve] Starting run %s", id)
	result, err := s.pipeline.Run(s.ctx, s.runs.Recorder(id))

	status := runstore.Status(executor.StatusFailed)
	if result != nil {
		status = runstore.Status(result.Status)
		if result.PRURL != "" {
			_ = s.runs.SetPRURL(id, result.PRURL)
		}
	}
	if err != nil {
		msg := github.RedactSecrets(err.Error())
		_ = s.runs.SetError(id, msg)
		log.Printf("[Serve] Run %s failed: %s", id, msg)
	}
	_ = s.runs.UpdateStatus(id, status)
	log.Printf("[Serve] Run %s finished: %s", id, status)
}

// start runs poll in the background.
func (s *scheduler) start(ctx context.Context, interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poll(ctx, interval)
	}()
}

// poll triggers a pass immediately and then on every tick until ctx ends.
func (s *scheduler) poll(ctx context.Context, interval time.Duration) {
	s.trigger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, ok := s.trigger(); !ok {
				log.Printf("[Serve] Previous run still in progress, skipping tick")
			}
		}
	}
}

// wait blocks until the poller and any in-flight run have stopped.
func (s *scheduler) wait() {
	s.wg.Wait()
}

func newRouter(handler *web.Handler) *mux.Router {
	r := mux.NewRouter()
	handler.RegisterRoutes(r)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"service":"firstfix","status":"running"}`)
	}).Methods(http.MethodGet)

	return r
}

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context, a *app, serve serveFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	runs := runstore.New(100)
	sched := newScheduler(ctx, a.pipeline, runs)
	defer func() {
		cancel()
		sched.wait()
	}()

	handler := web.NewHandler(runs, a.processed).WithTrigger(sched.trigger, sched.busy)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Port),
		Handler: newRouter(handler),
	}

	sched.start(ctx, a.cfg.PollInterval)

	log.Printf("Server listening on %s", srv.Addr)
	log.Printf("Health check: http://localhost%s/health", srv.Addr)
	log.Printf("Runs: http://localhost%s/runs", srv.Addr)
	log.Printf("Polling every %v", a.cfg.PollInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
