package storage

import "time"

// StockpileType is the kind of storage structure a stockpile lives in.
type StockpileType string

const (
	Seaport      StockpileType = "SEAPORT"
	StorageDepot StockpileType = "STORAGE_DEPOT"
)

// Valid reports whether t is a known stockpile type.
func (t StockpileType) Valid() bool {
	return t == Seaport || t == StorageDepot
}

// Stockpile is a named storage location owned by a regiment.
type Stockpile struct {
	ID              string        `json:"id"`
	RegimentID      string        `json:"regimentId"`
	Name            string        `json:"name"`
	Type            StockpileType `json:"type"`
	Hex             string        `json:"hex"`
	LocationName    string        `json:"locationName"`
	LastRefreshedAt *time.Time    `json:"lastRefreshedAt"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ItemRow is one row of a stockpile's current-state projection.
type ItemRow struct {
	StockpileID string   `json:"stockpileId"`
	ItemCode    string   `json:"itemCode"`
	Quantity    int      `json:"quantity"`
	Crated      bool     `json:"crated"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// Scan is an immutable snapshot event. Seq is the insertion order and breaks
// ties between scans sharing a CreatedAt.
type Scan struct {
	ID              string    `json:"id"`
	Seq             int64     `json:"-"`
	StockpileID     string    `json:"stockpileId"`
	ScannedByUserID string    `json:"scannedByUserId"`
	ItemCount       int       `json:"itemCount"`
	OCRConfidence   *float64  `json:"ocrConfidence"`
	WarNumber       *int      `json:"warNumber"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Before reports whether s precedes o in a stockpile's history.
func (s Scan) Before(o Scan) bool {
	if !s.CreatedAt.Equal(o.CreatedAt) {
		return s.CreatedAt.Before(o.CreatedAt)
	}
	return s.Seq < o.Seq
}

// ScanItem is one line of a scan's snapshot.
type ScanItem struct {
	ScanID     string   `json:"scanId"`
	ItemCode   string   `json:"itemCode"`
	Quantity   int      `json:"quantity"`
	Crated     bool     `json:"crated"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ScanInput carries everything written by ReplaceCurrentItems.
type ScanInput struct {
	StockpileID     string
	ScannedByUserID string
	WarNumber       *int
	CreatedAt       time.Time
	Items           []ScanItem
}

// Refresh records a refresh action on a stockpile.
type Refresh struct {
	ID                string    `json:"id"`
	StockpileID       string    `json:"stockpileId"`
	RefreshedByUserID string    `json:"refreshedByUserId"`
	WarNumber         *int      `json:"warNumber"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Contribution is a positive change of produced quantity on a production order item.
type Contribution struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	ItemCode  string    `json:"itemCode"`
	UserID    string    `json:"userId"`
	Quantity  int       `json:"quantity"`
	WarNumber *int      `json:"warNumber"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderStatus is the lifecycle state of a production order.
type OrderStatus string

const (
	OrderPending        OrderStatus = "PENDING"
	OrderInProgress     OrderStatus = "IN_PROGRESS"
	OrderReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderCompleted      OrderStatus = "COMPLETED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderFulfilled      OrderStatus = "FULFILLED"
)

type ProductionOrder struct {
	ID                string                `json:"id"`
	RegimentID        string                `json:"regimentId"`
	Name              string                `json:"name"`
	Description       string                `json:"description,omitempty"`
	Status            OrderStatus           `json:"status"`
	Priority          int                   `json:"priority"`
	IsMPF             bool                  `json:"isMpf"`
	IsStandingOrder   bool                  `json:"isStandingOrder"`
	LinkedStockpileID *string               `json:"linkedStockpileId"`
	WarNumber         *int                  `json:"warNumber"`
	CreatedByUserID   string                `json:"createdById"`
	CreatedAt         time.Time             `json:"createdAt"`
	CompletedAt       *time.Time            `json:"completedAt"`
	Items             []ProductionOrderItem `json:"items"`
}

type ProductionOrderItem struct {
	ItemCode         string `json:"itemCode"`
	QuantityRequired int    `json:"quantityRequired"`
	QuantityProduced int    `json:"quantityProduced"`
}

// ProgressUpdate sets the absolute produced quantity for one order item.
type ProgressUpdate struct {
	ItemCode         string
	QuantityProduced int
}

// OperationStatus is the lifecycle state of an operation.
type OperationStatus string

const (
	OperationPlanning  OperationStatus = "PLANNING"
	OperationActive    OperationStatus = "ACTIVE"
	OperationCompleted OperationStatus = "COMPLETED"
	OperationCancelled OperationStatus = "CANCELLED"
)

type Operation struct {
	ID                     string          `json:"id"`
	RegimentID             string          `json:"regimentId"`
	Name                   string          `json:"name"`
	Description            string          `json:"description,omitempty"`
	Status                 OperationStatus `json:"status"`
	Location               string          `json:"location,omitempty"`
	DestinationStockpileID *string         `json:"destinationStockpileId"`
	WarNumber              *int            `json:"warNumber"`
	CreatedByUserID        string          `json:"createdById"`
	CreatedAt              time.Time       `json:"createdAt"`
	Requirements           []Requirement   `json:"requirements"`
}

// Requirement is a declared need for an item.
type Requirement struct {
	ItemCode string `json:"itemCode"`
	Quantity int    `json:"quantity"`
	Priority int    `json:"priority"`
}

// ScanQuery selects scans of a regiment. Zero values disable a filter.
type ScanQuery struct {
	StockpileID string
	Since       time.Time
	WarNumber   *int
	Limit       int
	Offset      int
}

// EventQuery selects refresh or contribution events of a regiment.
// OperationQuery filters ListOperations. Zero fields match everything.
type OperationQuery struct {
	Status    OperationStatus
	WarNumber *int
	Limit     int
}

// OrderQuery filters ListProductionOrders. Nil flags match both values.
type OrderQuery struct {
	Status          OrderStatus
	IsMPF           *bool
	IsStandingOrder *bool
	WarNumber       *int
	Limit           int
}

type EventQuery struct {
	Since     time.Time
	WarNumber *int
}

type RegimentStats struct {
	StockpileCount         int        `json:"stockpileCount"`
	TotalItems             int        `json:"totalItems"`
	ActiveOperationCount   int        `json:"activeOperationCount"`
	PendingProductionCount int        `json:"pendingProductionCount"`
	ScansLast24Hours       int        `json:"scansLast24Hours"`
	LastUpdatedStockpile   string     `json:"lastUpdatedStockpile,omitempty"`
	LastUpdatedAt          *time.Time `json:"lastUpdatedAt"`
}
