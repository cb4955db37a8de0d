package logistics

import (
	"context"

	"github.com/regiment-logi/quartermaster/pkg/deficit"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

type OperationRequest struct {
	Name                   string                `json:"name" validate:"required,max=100"`
	Description            string                `json:"description"`
	Location               string                `json:"location"`
	DestinationStockpileID *string               `json:"destinationStockpileId"`
	UserID                 string                `json:"userId" validate:"required"`
	Requirements           []deficit.Requirement `json:"requirements" validate:"required,min=1,dive"`
}

func (s *Service) CreateOperation(ctx context.Context, regimentID string, req OperationRequest) (*storage.Operation, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := uniqueCodes(len(req.Requirements), func(i int) string { return req.Requirements[i].ItemCode }); err != nil {
		return nil, err
	}
	if req.DestinationStockpileID != nil {
		if _, err := s.store.GetStockpile(ctx, regimentID, *req.DestinationStockpileID); err != nil {
			return nil, err
		}
	}
	op := &storage.Operation{
		RegimentID:             regimentID,
		Name:                   req.Name,
		Description:            req.Description,
		Location:               req.Location,
		DestinationStockpileID: req.DestinationStockpileID,
		WarNumber:              s.currentWarNumber(ctx),
		CreatedByUserID:        req.UserID,
	}
	for _, r := range req.Requirements {
		op.Requirements = append(op.Requirements, storage.Requirement{ItemCode: storage.NormalizeItemCode(r.ItemCode), Quantity: r.Quantity, Priority: r.Priority})
	}
	if err := s.store.CreateOperation(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

type OperationFilter struct {
	Status string `json:"status" validate:"omitempty,oneof=PLANNING ACTIVE COMPLETED CANCELLED"`
	// War is empty, "current" or a war number.
	War   string `json:"war"`
	Limit int    `json:"limit" validate:"min=0"`
}

// ListOperations returns the regiment's operations, newest first.
func (s *Service) ListOperations(ctx context.Context, regimentID string, f OperationFilter) ([]storage.Operation, error) {
	if err := s.check(f); err != nil {
		return nil, err
	}
	war, err := s.warFilter(ctx, f.War)
	if err != nil {
		return nil, err
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	list, err := s.store.ListOperations(ctx, regimentID, storage.OperationQuery{Status: storage.OperationStatus(f.Status), WarNumber: war, Limit: f.Limit})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []storage.Operation{}
	}
	return list, nil
}

func (s *Service) Operation(ctx context.Context, regimentID, id string) (*storage.Operation, error) {
	return s.store.GetOperation(ctx, regimentID, id)
}

type OperationDeficit struct {
	Operation *storage.Operation `json:"operation"`
	deficit.Result
}

// OperationDeficit checks an operation's requirements against everything
// the regiment currently holds.
func (s *Service) OperationDeficit(ctx context.Context, regimentID, operationID string) (*OperationDeficit, error) {
	op, err := s.store.GetOperation(ctx, regimentID, operationID)
	if err != nil {
		return nil, err
	}
	avail, err := s.available(ctx, regimentID, "")
	if err != nil {
		return nil, err
	}
	reqs := make([]deficit.Requirement, 0, len(op.Requirements))
	for _, r := range op.Requirements {
		reqs = append(reqs, deficit.Requirement{ItemCode: r.ItemCode, Quantity: r.Quantity, Priority: r.Priority})
	}
	return &OperationDeficit{Operation: op, Result: deficit.Compute(reqs, avail)}, nil
}

// Deficit evaluates ad hoc requirements against the regiment's stock, or
// against one stockpile when stockpileID is set.
func (s *Service) Deficit(ctx context.Context, regimentID, stockpileID string, reqs []deficit.Requirement) (*deficit.Result, error) {
	for i := range reqs {
		if err := s.check(reqs[i]); err != nil {
			return nil, err
		}
	}
	if stockpileID != "" {
		if _, err := s.store.GetStockpile(ctx, regimentID, stockpileID); err != nil {
			return nil, err
		}
	}
	avail, err := s.available(ctx, regimentID, stockpileID)
	if err != nil {
		return nil, err
	}
	res := deficit.Compute(reqs, avail)
	return &res, nil
}

func uniqueCodes(n int, code func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		c := storage.NormalizeItemCode(code(i))
		if seen[c] {
			return invalid("itemCode", "unique")
		}
		seen[c] = true
	}
	return nil
}
