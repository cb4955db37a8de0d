package logistics

import (
	"context"

	"github.com/regiment-logi/quartermaster/pkg/deficit"
	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

type ProductionItem struct {
	ItemCode         string `json:"itemCode" validate:"required"`
	QuantityRequired int    `json:"quantityRequired" validate:"min=1"`
}

type ProductionRequest struct {
	Name              string           `json:"name" validate:"required,max=100"`
	Description       string           `json:"description"`
	Priority          int              `json:"priority" validate:"min=0,max=3"`
	IsMPF             bool             `json:"isMpf"`
	IsStandingOrder   bool             `json:"isStandingOrder"`
	LinkedStockpileID *string          `json:"linkedStockpileId" validate:"required_if=IsStandingOrder true"`
	UserID            string           `json:"userId" validate:"required"`
	Items             []ProductionItem `json:"items" validate:"required,min=1,dive"`
}

func (s *Service) CreateProductionOrder(ctx context.Context, regimentID string, req ProductionRequest) (*storage.ProductionOrder, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := uniqueCodes(len(req.Items), func(i int) string { return req.Items[i].ItemCode }); err != nil {
		return nil, err
	}
	if req.LinkedStockpileID != nil {
		if _, err := s.store.GetStockpile(ctx, regimentID, *req.LinkedStockpileID); err != nil {
			return nil, err
		}
	}
	o := &storage.ProductionOrder{
		RegimentID:        regimentID,
		Name:              req.Name,
		Description:       req.Description,
		Status:            storage.OrderPending,
		Priority:          req.Priority,
		IsMPF:             req.IsMPF,
		IsStandingOrder:   req.IsStandingOrder,
		LinkedStockpileID: req.LinkedStockpileID,
		WarNumber:         s.currentWarNumber(ctx),
		CreatedByUserID:   req.UserID,
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, storage.ProductionOrderItem{ItemCode: storage.NormalizeItemCode(it.ItemCode), QuantityRequired: it.QuantityRequired})
	}
	if err := s.store.CreateProductionOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

type ProgressLine struct {
	ItemCode         string `json:"itemCode" validate:"required"`
	QuantityProduced int    `json:"quantityProduced" validate:"min=0"`
}

type ProgressRequest struct {
	UserID string         `json:"userId" validate:"required"`
	Items  []ProgressLine `json:"items" validate:"required,min=1,dive"`
}

type ProductionProgress struct {
	Order           *storage.ProductionOrder `json:"order"`
	Contributions   []storage.Contribution   `json:"contributions"`
	ProgressPercent int                      `json:"progressPercent"`
}

// UpdateProduction sets produced quantities. Increases are credited to the
// user in the contribution ledger, stamped with the current war.
func (s *Service) UpdateProduction(ctx context.Context, regimentID, orderID string, req ProgressRequest) (*ProductionProgress, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	updates := make([]storage.ProgressUpdate, 0, len(req.Items))
	for _, l := range req.Items {
		updates = append(updates, storage.ProgressUpdate{ItemCode: l.ItemCode, QuantityProduced: l.QuantityProduced})
	}
	order, contribs, err := s.store.ApplyProductionProgress(ctx, regimentID, orderID, req.UserID, s.currentWarNumber(ctx), updates)
	if err != nil {
		return nil, err
	}
	if contribs == nil {
		contribs = []storage.Contribution{}
	}
	return &ProductionProgress{Order: order, Contributions: contribs, ProgressPercent: ProgressPercent(order)}, nil
}

// ProgressPercent is the share of the order's required units produced so far.
// Overproduction of one item does not count towards another.
func ProgressPercent(o *storage.ProductionOrder) int {
	var produced, required int
	for _, it := range o.Items {
		produced += min(it.QuantityProduced, it.QuantityRequired)
		required += it.QuantityRequired
	}
	if required == 0 {
		return 0
	}
	return deficit.Percent(produced, required)
}

// OrderView is a production order with its progress.
type OrderView struct {
	storage.ProductionOrder
	PriorityLabel   string `json:"priorityLabel"`
	TotalRequired   int    `json:"totalRequired"`
	TotalProduced   int    `json:"totalProduced"`
	ProgressPercent int    `json:"progressPercent"`
	ItemCount       int    `json:"itemCount"`
}

func orderView(o storage.ProductionOrder) OrderView {
	v := OrderView{ProductionOrder: o, PriorityLabel: items.PriorityLabel(o.Priority), ProgressPercent: ProgressPercent(&o), ItemCount: len(o.Items)}
	for _, it := range o.Items {
		v.TotalRequired += it.QuantityRequired
		v.TotalProduced += it.QuantityProduced
	}
	if v.Items == nil {
		v.Items = []storage.ProductionOrderItem{}
	}
	return v
}

type OrderFilter struct {
	Status          string `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS READY_FOR_PICKUP COMPLETED CANCELLED FULFILLED"`
	IsMPF           *bool  `json:"isMpf"`
	IsStandingOrder *bool  `json:"isStandingOrder"`
	// War is empty, "current" or a war number.
	War   string `json:"war"`
	Limit int    `json:"limit" validate:"min=0"`
}

// ListProductionOrders returns the regiment's orders, highest priority first.
func (s *Service) ListProductionOrders(ctx context.Context, regimentID string, f OrderFilter) ([]OrderView, error) {
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
	list, err := s.store.ListProductionOrders(ctx, regimentID, storage.OrderQuery{
		Status:          storage.OrderStatus(f.Status),
		IsMPF:           f.IsMPF,
		IsStandingOrder: f.IsStandingOrder,
		WarNumber:       war,
		Limit:           f.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, orderView(o))
	}
	return out, nil
}

func (s *Service) ProductionOrder(ctx context.Context, regimentID, id string) (*OrderView, error) {
	o, err := s.store.GetProductionOrder(ctx, regimentID, id)
	if err != nil {
		return nil, err
	}
	v := orderView(*o)
	return &v, nil
}

type OrderDeficit struct {
	Order *storage.ProductionOrder `json:"order"`
	// StockpileID is set when only the linked stockpile was considered.
	StockpileID *string `json:"stockpileId"`
	deficit.Result
}

// OrderDeficit checks an order's items against current stock. Standing
// orders are evaluated against their linked stockpile only; other orders
// against the whole regiment. Every item carries the order's priority.
func (s *Service) OrderDeficit(ctx context.Context, regimentID, orderID string) (*OrderDeficit, error) {
	o, err := s.store.GetProductionOrder(ctx, regimentID, orderID)
	if err != nil {
		return nil, err
	}
	scope := ""
	if o.IsStandingOrder && o.LinkedStockpileID != nil {
		scope = *o.LinkedStockpileID
	}
	avail, err := s.available(ctx, regimentID, scope)
	if err != nil {
		return nil, err
	}
	reqs := make([]deficit.Requirement, 0, len(o.Items))
	for _, it := range o.Items {
		reqs = append(reqs, deficit.Requirement{ItemCode: it.ItemCode, Quantity: it.QuantityRequired, Priority: o.Priority})
	}
	res := &OrderDeficit{Order: o, Result: deficit.Compute(reqs, avail)}
	if scope != "" {
		res.StockpileID = &scope
	}
	return res, nil
}
