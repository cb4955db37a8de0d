// Package server exposes the logistics service as a JSON API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/logistics"
)

type Server struct {
	Svc      *logistics.Service
	Username string
	Password string
	Log      logistics.Logger
}

func New(svc *logistics.Service, user, pass string, log logistics.Logger) *Server {
	return &Server{
		Svc:      svc,
		Username: user,
		Password: pass,
		Log:      log,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	const reg = "/api/regiments/{regiment}"
	mux.HandleFunc("GET "+reg+"/stockpiles", s.basicAuth(s.handleListStockpiles))
	mux.HandleFunc("POST "+reg+"/stockpiles", s.basicAuth(s.handleCreateStockpile))
	mux.HandleFunc("GET "+reg+"/stockpiles/{id}", s.basicAuth(s.handleGetStockpile))
	mux.HandleFunc("DELETE "+reg+"/stockpiles/{id}", s.basicAuth(s.handleDeleteStockpile))
	mux.HandleFunc("POST "+reg+"/stockpiles/{id}/scans", s.basicAuth(s.handleIngestScan))
	mux.HandleFunc("GET "+reg+"/stockpiles/{id}/scans", s.basicAuth(s.handleScanHistory))
	mux.HandleFunc("POST "+reg+"/stockpiles/{id}/refresh", s.basicAuth(s.handleRefresh))

	mux.HandleFunc("GET "+reg+"/inventory", s.basicAuth(s.handleInventory))
	mux.HandleFunc("GET "+reg+"/inventory/{item}", s.basicAuth(s.handleItemLocations))
	mux.HandleFunc("GET "+reg+"/leaderboard", s.basicAuth(s.handleLeaderboard))

	mux.HandleFunc("GET "+reg+"/operations", s.basicAuth(s.handleListOperations))
	mux.HandleFunc("POST "+reg+"/operations", s.basicAuth(s.handleCreateOperation))
	mux.HandleFunc("GET "+reg+"/operations/{id}", s.basicAuth(s.handleGetOperation))
	mux.HandleFunc("GET "+reg+"/operations/{id}/deficit", s.basicAuth(s.handleOperationDeficit))

	mux.HandleFunc("GET "+reg+"/production", s.basicAuth(s.handleListProduction))
	mux.HandleFunc("POST "+reg+"/production", s.basicAuth(s.handleCreateProduction))
	mux.HandleFunc("GET "+reg+"/production/{id}", s.basicAuth(s.handleGetProduction))
	mux.HandleFunc("POST "+reg+"/production/{id}/progress", s.basicAuth(s.handleProductionProgress))
	mux.HandleFunc("GET "+reg+"/production/{id}/deficit", s.basicAuth(s.handleProductionDeficit))

	mux.HandleFunc("GET "+reg+"/stats", s.basicAuth(s.handleStats))

	mux.HandleFunc("GET /api/war", s.basicAuth(s.handleWar))
	mux.HandleFunc("POST /api/war/invalidate", s.basicAuth(s.handleInvalidateWar))

	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger().Infof("Starting server on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger().Debugf("Writing response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var verr *logistics.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Fields = verr.Fields
	case errors.Is(err, logistics.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, logistics.ErrNotFound):
		status = http.StatusNotFound
	default:
		s.logger().Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		body.Error = "internal error"
	}
	s.writeJSON(w, status, body)
}

func (s *Server) logger() logistics.Logger {
	if s.Log == nil {
		return nopLogger{}
	}
	return s.Log
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
