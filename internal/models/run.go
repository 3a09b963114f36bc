package models

import "time"

// Pipeline run statuses
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// PipelineRun records one data generation run in the history database
type PipelineRun struct {
	BaseModel
	RunID            string     `json:"run_id" gorm:"uniqueIndex;not null"`
	TargetDate       string     `json:"target_date" gorm:"not null"`
	TableSuffix      string     `json:"table_suffix"`
	Status           string     `json:"status" gorm:"not null;default:pending"`
	BaseOrderCount   int        `json:"base_order_count"`
	SampledCount     int        `json:"sampled_count"`
	ProviderUsers    int        `json:"provider_users"`
	TransactionCount int        `json:"transaction_count"`
	ErrorMsg         string     `json:"error_msg" gorm:"type:text"`
	StartedAt        *time.Time `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
}

// Exchange records a provisioned Analytics Hub exchange/listing pair
type Exchange struct {
	BaseModel
	ExchangeID       string `json:"exchange_id" gorm:"not null;index"`
	ListingID        string `json:"listing_id" gorm:"not null"`
	ExchangeResource string `json:"exchange_resource"`
	ListingResource  string `json:"listing_resource"`
	CleanRoom        bool   `json:"clean_room" gorm:"default:false"`
	Dataset          string `json:"dataset"`
	Table            string `json:"table"`
	SubscriberEmail  string `json:"subscriber_email"`
	Status           string `json:"status"`
}
