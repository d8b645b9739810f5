package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-github/v58/github"
	"github.com/sourcegraph/conc"
)

// EventHandler is what the webhook server dispatches accepted deliveries to.
type EventHandler interface {
	ReviewPullRequest(ctx context.Context, pr PullRequestContext) ReviewResult
	CreateBranch(ctx context.Context, issue IssueContext) *BranchDetails
}

type WebhookServer struct {
	handler  EventHandler
	config   *Config
	inflight conc.WaitGroup
	// baseCtx is cancelled when the server shuts down.
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewWebhookServer(config *Config, handler EventHandler) *WebhookServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookServer{
		handler: handler,
		config:  config,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

func (s *WebhookServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Post("/webhook", s.handleWebhook)
	return r
}

func (s *WebhookServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	eventType := github.WebHookType(r)
	log := WithFields(map[string]interface{}{
		"event":    eventType,
		"delivery": github.DeliveryID(r),
		"request":  middleware.GetReqID(r.Context()),
	})

	payload, err := github.ValidatePayload(r, []byte(s.config.WebhookSecret))
	if err != nil {
		log.Warn("Rejected delivery: %v", err)
		http.Error(w, "invalid payload signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		log.Warn("Could not parse delivery: %v", err)
		http.Error(w, "unsupported or malformed event", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		log.Info("Ping received (zen: %s)", e.GetZen())
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
		return
	case *github.PullRequestEvent:
		if !s.acceptPullRequest(e) {
			break
		}
		pr := PullRequestContextFromEvent(e)
		log.Info("Accepted pull_request %s for %s#%d", e.GetAction(), pr.Repo, pr.Number)
		s.dispatch(func(ctx context.Context) {
			s.handler.ReviewPullRequest(ctx, pr)
		})
		w.WriteHeader(http.StatusAccepted)
		return
	case *github.IssuesEvent:
		if !s.acceptIssue(e) {
			break
		}
		issue := IssueContextFromEvent(e)
		log.Info("Accepted issues %s for %s#%d", e.GetAction(), issue.Repo, issue.Number)
		s.dispatch(func(ctx context.Context) {
			s.handler.CreateBranch(ctx, issue)
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	log.Debug("Ignoring delivery")
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebhookServer) acceptPullRequest(e *github.PullRequestEvent) bool {
	if !s.config.ReviewsEnabled() {
		return false
	}
	switch e.GetAction() {
	case "opened", "reopened", "synchronize":
		return e.GetPullRequest() != nil && e.GetRepo() != nil
	}
	return false
}

func (s *WebhookServer) acceptIssue(e *github.IssuesEvent) bool {
	if e.GetIssue() == nil || e.GetRepo() == nil || e.GetIssue().IsPullRequest() {
		return false
	}
	trigger := s.config.BranchTriggerLabel
	if trigger == "" {
		return e.GetAction() == "opened"
	}
	return e.GetAction() == "labeled" && strings.EqualFold(e.GetLabel().GetName(), trigger)
}

// dispatch runs fn in the background with the per-event timeout.
func (s *WebhookServer) dispatch(fn func(ctx context.Context)) {
	timeout := s.config.EventTimeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	s.inflight.Go(func() {
		ctx, cancel := context.WithTimeout(s.baseCtx, timeout)
		defer cancel()
		fn(ctx)
	})
}

// Wait blocks until every dispatched delivery has finished.
func (s *WebhookServer) Wait() {
	s.inflight.Wait()
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight work.
func (s *WebhookServer) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Info("Webhook server listening on %s", s.config.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
	}

	Info("Shutting down webhook server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		Warn("Server shutdown: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		Warn("Cancelling deliveries still in flight")
		s.cancel()
		<-done
	}
	s.cancel()
	return nil
}
