package models

import (
	"time"

	"quickclean/pkg/money"
)

// RequestStatus is the lifecycle state of a pickup request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "Pending"
	StatusAccepted   RequestStatus = "Accepted"
	StatusInProgress RequestStatus = "In Progress"
	StatusCompleted  RequestStatus = "Completed"
	StatusCancelled  RequestStatus = "Cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Category is the waste type of a request.
type Category string

const (
	CategoryWet        Category = "Wet"
	CategoryDry        Category = "Dry"
	CategoryMixed      Category = "Mixed"
	CategoryRecyclable Category = "Recyclable"
	CategoryEWaste     Category = "E-Waste"
)

var Categories = []Category{CategoryWet, CategoryDry, CategoryMixed, CategoryRecyclable, CategoryEWaste}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Quantity is a coarse size bucket a customer can pick instead of a weight.
type Quantity string

const (
	QuantitySmall  Quantity = "Small"
	QuantityMedium Quantity = "Medium"
	QuantityLarge  Quantity = "Large"
)

// NominalWeightKg is the weight used for pricing when only a bucket is known.
func (q Quantity) NominalWeightKg() (float64, bool) {
	switch q {
	case QuantitySmall:
		return 5, true
	case QuantityMedium:
		return 15, true
	case QuantityLarge:
		return 25, true
	}
	return 0, false
}

// Request is a single waste-pickup job.
type Request struct {
	ID                    string        `json:"id"`
	UserID                string        `json:"user_id"`
	WorkerID              *string       `json:"worker_id"`
	Category              Category      `json:"category"`
	WeightKg              float64       `json:"weight_kg"`
	Quantity              *Quantity     `json:"quantity,omitempty"`
	Address               string        `json:"address"`
	Latitude              *float64      `json:"latitude,omitempty"`
	Longitude             *float64      `json:"longitude,omitempty"`
	PreferredDate         string        `json:"preferred_date,omitempty"`
	PreferredTime         string        `json:"preferred_time,omitempty"`
	MobileContact         string        `json:"mobile_contact"`
	ImageURL              string        `json:"image_url"`
	Status                RequestStatus `json:"status"`
	EstimatedPrice        money.Amount  `json:"estimated_price"`
	FinalEarning          *money.Amount `json:"final_earning"`
	CompletionTimeMinutes *int32        `json:"completion_time_minutes"`
	AfterImageURL         *string       `json:"after_image_url"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// AssignedTo reports whether workerID holds the request.
func (r *Request) AssignedTo(workerID string) bool {
	return r.WorkerID != nil && *r.WorkerID == workerID
}

// RequestView is a request joined with the display names shown on the admin table.
type RequestView struct {
	Request
	RequesterName  string  `json:"requester_name"`
	RequesterEmail string  `json:"requester_email"`
	WorkerName     *string `json:"worker_name"`
}

// CreateRequestRequest is the customer's pickup submission.
type CreateRequestRequest struct {
	Category      Category  `json:"category" validate:"required,category"`
	WeightKg      *float64  `json:"weight_kg,omitempty" validate:"required_without=Quantity,omitempty,gt=0,lte=10000"`
	Quantity      *Quantity `json:"quantity,omitempty" validate:"required_without=WeightKg,omitempty,quantity"`
	Address       string    `json:"address" validate:"required,max=500"`
	Latitude      *float64  `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude     *float64  `json:"longitude,omitempty" validate:"omitempty,longitude"`
	PreferredDate string    `json:"preferred_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PreferredTime string    `json:"preferred_time,omitempty" validate:"omitempty,datetime=15:04"`
	MobileContact string    `json:"mobile_contact" validate:"required,min=7,max=20"`
	ImageURL      string    `json:"image_url" validate:"required,url"`
}

// NewRequest is what the lifecycle controller hands to the store on create.
type NewRequest struct {
	UserID         string
	Category       Category
	WeightKg       float64
	Quantity       *Quantity
	Address        string
	Latitude       *float64
	Longitude      *float64
	PreferredDate  string
	PreferredTime  string
	MobileContact  string
	ImageURL       string
	EstimatedPrice money.Amount
}

// CompleteRequestRequest carries the completion evidence from the worker.
type CompleteRequestRequest struct {
	AfterImageURL         string `json:"after_image_url" validate:"required,url"`
	CompletionTimeMinutes int32  `json:"completion_time_minutes" validate:"required,gt=0,lte=1440"`
}

// AssignRequest is the admin override payload.
type AssignRequest struct {
	WorkerID string `json:"worker_id" validate:"required,uuid"`
}

// AdminRequestFilter narrows the admin request table.
type AdminRequestFilter struct {
	Status RequestStatus
	Query  string
	Page   int
	Limit  int
}

// WorkerJobs is the worker's own queue split by phase.
type WorkerJobs struct {
	Active    []*Request `json:"active"`
	Completed []*Request `json:"completed"`
}

// RequestFigures is the projection the dashboard stats are computed from.
type RequestFigures struct {
	Status         RequestStatus
	EstimatedPrice money.Amount
	FinalEarning   *money.Amount
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalRequests  int          `json:"total_requests"`
	PendingPickups int          `json:"pending_pickups"`
	ActiveWorkers  int          `json:"active_workers"`
	CompletedJobs  int          `json:"completed_jobs"`
	TotalRevenue   money.Amount `json:"total_revenue"`
}
