// Package api exposes the HTTP handlers for the backend: the Strava webhook
// surface, listen ingestion, credential registration, and the recent-runs read API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eric-nguyen545/runningTunes/internal/auth"
	"github.com/eric-nguyen545/runningTunes/internal/domain"
	"github.com/eric-nguyen545/runningTunes/internal/observability"
)

// RunLister lists the athlete's recent activities from the activity service.
type RunLister interface {
	AthleteActivities(ctx context.Context, accessToken string, page, perPage int) ([]domain.ActivityDetail, error)
}

// HandlerConfig carries the handler tunables.
type HandlerConfig struct {
	VerifyToken   string
	RunsPageSize  int
	RunsWithSongs int
}

// Handler coordinates HTTP requests with the correlation engine and stores.
type Handler struct {
	engine      *domain.Engine
	listens     domain.ListenStore
	credentials domain.CredentialStore
	tokens      domain.TokenResolver
	runs        RunLister
	cfg         HandlerConfig
	logger      *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(engine *domain.Engine, listens domain.ListenStore, credentials domain.CredentialStore, tokens domain.TokenResolver, runs RunLister, cfg HandlerConfig) *Handler {
	if cfg.RunsPageSize <= 0 {
		cfg.RunsPageSize = 10
	}
	if cfg.RunsWithSongs <= 0 {
		cfg.RunsWithSongs = 3
	}
	return &Handler{
		engine:      engine,
		listens:     listens,
		credentials: credentials,
		tokens:      tokens,
		runs:        runs,
		cfg:         cfg,
		logger:      log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lshortfile),
	}
}

// RegisterRoutes wires endpoints to the mux. The legacy ingestion path is kept
// for the deployed poller.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.webhook)
	mux.HandleFunc("/v1/listens", h.logListen)
	mux.HandleFunc("/log-spotify", h.logListen)
	mux.HandleFunc("/v1/credentials", h.putCredential)
	mux.HandleFunc("/v1/runs/recent", h.recentRuns)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verifySubscription(w, r)
	case http.MethodPost:
		h.handleEvent(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// verifySubscription answers the hub challenge handshake Strava sends when a
// webhook subscription is created.
func (h *Handler) verifySubscription(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.cfg.VerifyToken {
		writeError(w, http.StatusForbidden, "verification_failed", "verify token mismatch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// webhookEventRequest is the notification payload delivered by Strava.
type webhookEventRequest struct {
	ObjectType string `json:"object_type"`
	ObjectID   int64  `json:"object_id"`
	OwnerID    int64  `json:"owner_id"`
	AspectType string `json:"aspect_type"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req webhookEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	outcome, err := h.engine.Process(r.Context(), domain.WebhookEvent{
		ObjectType: req.ObjectType,
		ObjectID:   req.ObjectID,
		OwnerID:    req.OwnerID,
		AspectType: req.AspectType,
	})
	if err != nil {
		h.logger.Printf("webhook processing failed (activity=%d): %v", req.ObjectID, err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	observability.RecordWebhookOutcome(string(outcome))
	writeJSON(w, statusForOutcome(outcome), map[string]string{"status": string(outcome)})
}

// statusForOutcome maps each terminal outcome to a distinct delivery status so
// Strava can decide whether to redeliver.
func statusForOutcome(outcome domain.Outcome) int {
	switch outcome {
	case domain.OutcomeUpdated, domain.OutcomeAlreadyProcessed, domain.OutcomeIgnored:
		return http.StatusOK
	case domain.OutcomeUnauthorized:
		return http.StatusForbidden
	case domain.OutcomeInvalidActivity:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// logListenRequest is the payload posted by the playback poller.
type logListenRequest struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	PlayedAt string `json:"played_at"`
}

// Validate ensures request correctness.
func (r logListenRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.Artist) == "" {
		return errors.New("artist is required")
	}
	if strings.TrimSpace(r.PlayedAt) == "" {
		return errors.New("played_at is required")
	}
	return nil
}

func (h *Handler) logListen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeListensWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope listens:write required")
		return
	}

	var req logListenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	playedAt, err := time.Parse(time.RFC3339, req.PlayedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "played_at must be RFC 3339")
		return
	}

	listen := domain.Listen{
		TrackName: req.Name,
		Artist:    req.Artist,
		PlayedAt:  playedAt.UTC(),
	}
	if err := h.listens.Record(r.Context(), listen); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	observability.RecordListenIngested("http", listen.PlayedAt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

// putCredentialRequest registers the token set produced by the OAuth exchange
// collaborator for an athlete.
type putCredentialRequest struct {
	OwnerID      int64  `json:"owner_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Validate ensures request correctness.
func (r putCredentialRequest) Validate() error {
	if r.OwnerID <= 0 {
		return errors.New("owner_id is required")
	}
	if strings.TrimSpace(r.AccessToken) == "" {
		return errors.New("access_token is required")
	}
	if strings.TrimSpace(r.RefreshToken) == "" {
		return errors.New("refresh_token is required")
	}
	if r.ExpiresAt <= 0 {
		return errors.New("expires_at is required")
	}
	return nil
}

func (h *Handler) putCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCredentialsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope credentials:write required")
		return
	}

	var req putCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	credential := domain.Credential{
		OwnerID:      req.OwnerID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    time.Unix(req.ExpiresAt, 0).UTC(),
	}
	if err := h.credentials.Put(r.Context(), credential); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// SongView is one correlated listen in a run response.
type SongView struct {
	Name     string    `json:"name"`
	Artist   string    `json:"artist"`
	PlayedAt time.Time `json:"played_at"`
}

// RunView is a recent run with its correlated songs.
type RunView struct {
	ActivityID     int64      `json:"activity_id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	StartDate      time.Time  `json:"start_date"`
	ElapsedSeconds int        `json:"elapsed_time"`
	Distance       float64    `json:"distance"`
	Songs          []SongView `json:"songs,omitempty"`
}

// RecentRunsResponse packages the recent-runs listing.
type RecentRunsResponse struct {
	Runs []RunView `json:"runs"`
}

func isRunType(activityType string) bool {
	switch activityType {
	case "Run", "TrailRun", "VirtualRun":
		return true
	}
	return false
}

func (h *Handler) recentRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRunsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope runs:read required")
		return
	}

	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil || ownerID <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing or invalid owner_id parameter")
		return
	}

	accessToken, err := h.tokens.Resolve(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthorized) || errors.Is(err, domain.ErrRefreshFailed) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "owner has no usable credential")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	activities, err := h.runs.AthleteActivities(r.Context(), accessToken, 1, h.cfg.RunsPageSize)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	runs := make([]RunView, 0, len(activities))
	for _, activity := range activities {
		if !isRunType(activity.Type) {
			continue
		}

		view := RunView{
			ActivityID:     activity.ID,
			Name:           activity.Name,
			Type:           activity.Type,
			StartDate:      activity.StartDate,
			ElapsedSeconds: activity.ElapsedSeconds,
			Distance:       activity.Distance,
		}

		// Correlating listens costs a range query per run; cap it.
		if len(runs) < h.cfg.RunsWithSongs {
			start, end := activity.Window()
			listens, err := h.listens.QueryRange(r.Context(), start, end)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "server_error", err.Error())
				return
			}
			for _, listen := range domain.DedupeListens(listens) {
				view.Songs = append(view.Songs, SongView{
					Name:     listen.TrackName,
					Artist:   listen.Artist,
					PlayedAt: listen.PlayedAt,
				})
			}
		}

		runs = append(runs, view)
	}

	writeJSON(w, http.StatusOK, RecentRunsResponse{Runs: runs})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
