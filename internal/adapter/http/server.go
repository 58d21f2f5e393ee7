// Package http exposes the disaster-response API over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-response-api/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/social"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// DisasterStore is the slice of the record store the API needs.
type DisasterStore interface {
	CreateDisaster(d *domain.Disaster) error
	GetDisaster(id string) (domain.Disaster, error)
	ListDisasters(tag string) ([]domain.Disaster, error)
	PutDisaster(d domain.Disaster) error
	DeleteDisaster(id string) error
	CreateResource(r *domain.Resource) error
	ListResourcesNear(disasterID string, lat, lon, radiusMeters float64) ([]domain.Resource, error)
}

// UpdatesAggregator runs the official-updates pipeline.
type UpdatesAggregator interface {
	OfficialUpdates(ctx context.Context, sc domain.SearchContext, forceRefresh bool) ([]domain.UpdateRecord, error)
}

// SocialFeed serves and mutates a disaster's social-media feed.
type SocialFeed interface {
	DisasterFeed(ctx context.Context, disasterID string) (social.Feed, error)
	CreatePost(ctx context.Context, disasterID, text, platform, userID string) (domain.SocialPost, error)
}

// Analyzer proxies AI text and image analysis.
type Analyzer interface {
	ExtractLocation(ctx context.Context, text string) (string, error)
	VerifyImage(ctx context.Context, imageData, mimeType, description string) (string, error)
}

// AuditPublisher records disaster mutations on the audit stream.
type AuditPublisher interface {
	Publish(ctx context.Context, event kafka.AuditEvent)
}

// Deps bundles everything the server serves from. Analyzer and Audit may be
// nil when the corresponding feature is disabled.
type Deps struct {
	Store    DisasterStore
	Updates  UpdatesAggregator
	Social   SocialFeed
	Geocoder domain.Geocoder
	Analyzer Analyzer
	Audit    AuditPublisher
	Ready    ReadinessChecker
}

// Server exposes the API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates the API server with all routes registered.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/disasters", withAuth(s.handleCreateDisaster))
	mux.HandleFunc("GET /api/disasters", s.handleListDisasters)
	mux.HandleFunc("GET /api/disasters/{id}", s.handleGetDisaster)
	mux.HandleFunc("PUT /api/disasters/{id}", withAuth(s.handleUpdateDisaster))
	mux.HandleFunc("DELETE /api/disasters/{id}", withAuth(s.handleDeleteDisaster))

	mux.HandleFunc("GET /api/disasters/{id}/resources", s.handleNearbyResources)
	mux.HandleFunc("POST /api/disasters/{id}/resources", withAuth(s.handleCreateResource))

	mux.HandleFunc("GET /api/disasters/{id}/official-updates", s.handleOfficialUpdates)
	mux.HandleFunc("GET /api/disasters/{id}/social-media", s.handleSocialFeed)
	mux.HandleFunc("POST /api/disasters/{id}/social-media", withAuth(s.handleCreatePost))

	mux.HandleFunc("GET /api/geocode", s.handleGeocode)
	mux.HandleFunc("POST /api/extract-location", s.handleExtractLocation)
	mux.HandleFunc("POST /api/verify-image", s.handleVerifyImage)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Ready.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// disasterRequest uses pointer coordinates so an explicit (0,0) — a real
// point off the coast of Ghana — is distinguishable from absent ones.
type disasterRequest struct {
	Title        string   `json:"title"`
	LocationName string   `json:"location_name"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

func (s *Server) handleCreateDisaster(w http.ResponseWriter, r *http.Request) {
	var req disasterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	user := UserFromContext(r.Context())
	d := domain.Disaster{
		Title:        strings.TrimSpace(req.Title),
		LocationName: strings.TrimSpace(req.LocationName),
		Description:  req.Description,
		Tags:         req.Tags,
		OwnerID:      user.ID,
		AuditTrail:   []domain.AuditEntry{{Action: "create", UserID: user.ID, Timestamp: domain.Now()}},
	}
	if req.Lat != nil {
		d.Lat = *req.Lat
	}
	if req.Lon != nil {
		d.Lon = *req.Lon
	}

	// Geocoding is best-effort: a record without coordinates is still valid.
	if req.Lat == nil && req.Lon == nil && d.LocationName != "" && s.deps.Geocoder != nil {
		if geo, err := s.deps.Geocoder.Geocode(r.Context(), d.LocationName); err == nil {
			d.Lat, d.Lon = geo.Lat, geo.Lon
		} else {
			s.logger.Warn("geocoding failed for new disaster", "location", d.LocationName, "error", err)
		}
	}

	if err := s.deps.Store.CreateDisaster(&d); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r.Context(), kafka.AuditEvent{Action: "create", DisasterID: d.ID, UserID: user.ID, Detail: d.Title})
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDisasters(w http.ResponseWriter, r *http.Request) {
	disasters, err := s.deps.Store.ListDisasters(r.URL.Query().Get("tag"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disasters)
}

func (s *Server) handleGetDisaster(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Store.GetDisaster(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// updateDisasterRequest uses pointers so absent fields leave the record
// untouched.
type updateDisasterRequest struct {
	Title        *string   `json:"title"`
	LocationName *string   `json:"location_name"`
	Description  *string   `json:"description"`
	Tags         *[]string `json:"tags"`
	Lat          *float64  `json:"lat"`
	Lon          *float64  `json:"lon"`
}

func (s *Server) handleUpdateDisaster(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Store.GetDisaster(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	user := UserFromContext(r.Context())
	if !canModify(user, d.OwnerID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the owner may modify this disaster"})
		return
	}

	var req updateDisasterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title cannot be empty"})
			return
		}
		d.Title = strings.TrimSpace(*req.Title)
	}
	if req.LocationName != nil {
		d.LocationName = strings.TrimSpace(*req.LocationName)
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	if req.Tags != nil {
		d.Tags = *req.Tags
	}
	if req.Lat != nil {
		d.Lat = *req.Lat
	}
	if req.Lon != nil {
		d.Lon = *req.Lon
	}
	d.AuditTrail = append(d.AuditTrail, domain.AuditEntry{Action: "update", UserID: user.ID, Timestamp: domain.Now()})

	if err := s.deps.Store.PutDisaster(d); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r.Context(), kafka.AuditEvent{Action: "update", DisasterID: d.ID, UserID: user.ID})
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDisaster(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.deps.Store.GetDisaster(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	user := UserFromContext(r.Context())
	if !canModify(user, d.OwnerID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the owner may delete this disaster"})
		return
	}

	if err := s.deps.Store.DeleteDisaster(id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r.Context(), kafka.AuditEvent{Action: "delete", DisasterID: id, UserID: user.ID, Detail: d.Title})
	w.WriteHeader(http.StatusNoContent)
}

// nearbyRadiusMeters bounds the resources query to a 10 km circle.
const nearbyRadiusMeters = 10000

func (s *Server) handleNearbyResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required"})
		return
	}
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon must be numbers"})
		return
	}

	id := r.PathValue("id")
	if _, err := s.deps.Store.GetDisaster(id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	resources, err := s.deps.Store.ListResourcesNear(id, lat, lon, nearbyRadiusMeters)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if resources == nil {
		resources = []domain.Resource{}
	}
	writeJSON(w, http.StatusOK, resources)
}

type createResourceRequest struct {
	Name         string   `json:"name"`
	LocationName string   `json:"location_name"`
	Type         string   `json:"type"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required"})
		return
	}

	user := UserFromContext(r.Context())
	resource := domain.Resource{
		DisasterID:   r.PathValue("id"),
		Name:         strings.TrimSpace(req.Name),
		LocationName: strings.TrimSpace(req.LocationName),
		Type:         req.Type,
		Lat:          *req.Lat,
		Lon:          *req.Lon,
	}
	if err := s.deps.Store.CreateResource(&resource); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r.Context(), kafka.AuditEvent{Action: "resource", DisasterID: resource.DisasterID, UserID: user.ID, Detail: resource.Name})
	writeJSON(w, http.StatusCreated, resource)
}

func (s *Server) handleOfficialUpdates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sc := domain.SearchContext{
		DisasterID:   r.PathValue("id"),
		Title:        q.Get("title"),
		LocationName: q.Get("location_name"),
	}
	records, err := s.deps.Updates.OfficialUpdates(r.Context(), sc, q.Get("refresh") == "true")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSocialFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := s.deps.Social.DisasterFeed(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

type createPostRequest struct {
	Post     string `json:"post"`
	Platform string `json:"platform"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	user := UserFromContext(r.Context())
	id := r.PathValue("id")
	post, err := s.deps.Social.CreatePost(r.Context(), id, req.Post, req.Platform, user.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r.Context(), kafka.AuditEvent{Action: "post", DisasterID: id, UserID: user.ID})
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.deps.Geocoder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "geocoding is not enabled"})
		return
	}
	result, err := s.deps.Geocoder.Geocode(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type extractLocationRequest struct {
	Text string `json:"text"`
}

type extractLocationResponse struct {
	Location string                  `json:"location"`
	Geo      *domain.GeocodingResult `json:"geo,omitempty"`
}

func (s *Server) handleExtractLocation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AI analysis is not enabled"})
		return
	}

	var req extractLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	location, err := s.deps.Analyzer.ExtractLocation(r.Context(), req.Text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := extractLocationResponse{Location: location}
	if location != "" && s.deps.Geocoder != nil {
		if geo, err := s.deps.Geocoder.Geocode(r.Context(), location); err == nil {
			resp.Geo = &geo
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type verifyImageRequest struct {
	ImageData   string `json:"image_data"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
}

func (s *Server) handleVerifyImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AI analysis is not enabled"})
		return
	}

	var req verifyImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	analysis, err := s.deps.Analyzer.VerifyImage(r.Context(), req.ImageData, req.MimeType, req.Description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// audit publishes an audit event when the stream is enabled.
func (s *Server) audit(ctx context.Context, event kafka.AuditEvent) {
	if s.deps.Audit != nil {
		s.deps.Audit.Publish(ctx, event)
	}
}

// writeDomainError maps domain errors to HTTP responses. Unexpected errors
// are logged server-side and answered with a generic message.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Msg})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
