package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/regiment-logi/quartermaster/pkg/inventory"
	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
	"github.com/regiment-logi/quartermaster/pkg/scoring"
)

func (s *Server) handleListStockpiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.Svc.Stockpiles(r.Context(), r.PathValue("regiment"), r.URL.Query().Get("hex"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateStockpile(w http.ResponseWriter, r *http.Request) {
	var req logistics.StockpileRequest
	if !s.decode(w, r, &req) {
		return
	}
	sp, err := s.Svc.CreateStockpile(r.Context(), r.PathValue("regiment"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sp)
}

func (s *Server) handleGetStockpile(w http.ResponseWriter, r *http.Request) {
	d, err := s.Svc.StockpileDetail(r.Context(), r.PathValue("regiment"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteStockpile(w http.ResponseWriter, r *http.Request) {
	if err := s.Svc.DeleteStockpile(r.Context(), r.PathValue("regiment"), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngestScan(w http.ResponseWriter, r *http.Request) {
	var req logistics.ScanRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.Svc.IngestScan(r.Context(), r.PathValue("regiment"), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleScanHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intParam(q, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scans, err := s.Svc.ScanHistory(r.Context(), r.PathValue("regiment"), logistics.HistoryQuery{StockpileID: r.PathValue("id"), Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"scans": scans, "limit": limit, "offset": offset})
}

type refreshRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}
	ref, view, err := s.Svc.RefreshStockpile(r.Context(), r.PathValue("regiment"), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"refresh": ref, "stockpile": view})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.Filter{}
	var err error
	if f.Limit, err = intParam(q, "limit", 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	if v := q.Get("search"); v != "" {
		f.Search = &v
	}
	if v := q.Get("category"); v != "" {
		cat, ok := items.ParseCategory(v)
		if !ok {
			s.writeError(w, r, badParam("category", "oneof"))
			return
		}
		f.Category = &cat
	}
	if v := q.Get("stockpile"); v != "" {
		f.StockpileID = &v
	}
	res, err := s.Svc.Inventory(r.Context(), r.PathValue("regiment"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleItemLocations(w http.ResponseWriter, r *http.Request) {
	res, err := s.Svc.ItemLocations(r.Context(), r.PathValue("regiment"), r.PathValue("item"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, ok := scoring.ParseWindow(q.Get("period"))
	if !ok {
		s.writeError(w, r, badParam("period", "oneof"))
		return
	}
	limit, err := intParam(q, "limit", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lb, err := s.Svc.Leaderboard(r.Context(), scoring.Request{
		RegimentID: r.PathValue("regiment"),
		Window:     window,
		Limit:      limit,
		UserID:     q.Get("user"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lb)
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := logistics.OperationFilter{Status: q.Get("status"), War: q.Get("war")}
	var err error
	if f.Limit, err = intParam(q, "limit", 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Svc.ListOperations(r.Context(), r.PathValue("regiment"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"operationCount": len(list), "operations": list})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := s.Svc.Operation(r.Context(), r.PathValue("regiment"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleCreateOperation(w http.ResponseWriter, r *http.Request) {
	var req logistics.OperationRequest
	if !s.decode(w, r, &req) {
		return
	}
	op, err := s.Svc.CreateOperation(r.Context(), r.PathValue("regiment"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, op)
}

func (s *Server) handleOperationDeficit(w http.ResponseWriter, r *http.Request) {
	res, err := s.Svc.OperationDeficit(r.Context(), r.PathValue("regiment"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListProduction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := logistics.OrderFilter{Status: q.Get("status"), War: q.Get("war")}
	var err error
	if f.Limit, err = intParam(q, "limit", 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.IsMPF, err = boolParam(q, "mpf"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.IsStandingOrder, err = boolParam(q, "standing"); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Svc.ListProductionOrders(r.Context(), r.PathValue("regiment"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"orderCount": len(list), "orders": list})
}

func (s *Server) handleGetProduction(w http.ResponseWriter, r *http.Request) {
	o, err := s.Svc.ProductionOrder(r.Context(), r.PathValue("regiment"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCreateProduction(w http.ResponseWriter, r *http.Request) {
	var req logistics.ProductionRequest
	if !s.decode(w, r, &req) {
		return
	}
	o, err := s.Svc.CreateProductionOrder(r.Context(), r.PathValue("regiment"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleProductionProgress(w http.ResponseWriter, r *http.Request) {
	var req logistics.ProgressRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.Svc.UpdateProduction(r.Context(), r.PathValue("regiment"), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProductionDeficit(w http.ResponseWriter, r *http.Request) {
	res, err := s.Svc.OrderDeficit(r.Context(), r.PathValue("regiment"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Svc.Stats(r.Context(), r.PathValue("regiment"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWar(w http.ResponseWriter, r *http.Request) {
	war, err := s.Svc.War(r.Context())
	if err != nil {
		s.logger().Warnf("War lookup failed: %v", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, war)
}

func (s *Server) handleInvalidateWar(w http.ResponseWriter, r *http.Request) {
	s.Svc.InvalidateWar()
	w.WriteHeader(http.StatusNoContent)
}

// decode reads the JSON body into v and answers 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return false
	}
	return true
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badParam(name, "min=0")
	}
	return n, nil
}

// boolParam returns nil when the parameter is absent.
func boolParam(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, badParam(name, "boolean")
	}
	return &b, nil
}

func badParam(field, rule string) error {
	return &logistics.ValidationError{Fields: map[string]string{field: rule}}
}
