package models

import "cloud.google.com/go/civil"

// ProviderUser is a synthetic e-wallet user. One is emitted per distinct
// customer email in the sampled orders; provider_user_id is a dense 1-based
// sequence assigned in first-seen email order.
type ProviderUser struct {
	ProviderUserID int64      `bigquery:"provider_user_id" json:"provider_user_id"`
	Email          string     `bigquery:"email" json:"email"`
	DateOfBirth    civil.Date `bigquery:"date_of_birth" json:"date_of_birth"`
	City           string     `bigquery:"city" json:"city"`
	AccountTier    string     `bigquery:"account_tier" json:"account_tier"`
	IsVerifiedUser bool       `bigquery:"is_verified_user" json:"is_verified_user"`
}

// Transaction is a synthetic e-wallet transaction derived from one sampled
// merchant order. ProviderUserID references a ProviderUser from the same
// generation run; TransactionTimestamp carries the order's created_at as an
// RFC 3339 string.
type Transaction struct {
	TransactionID        string  `bigquery:"transaction_id" json:"transaction_id"`
	OrderID              int64   `bigquery:"order_id" json:"order_id"`
	ProviderUserID       int64   `bigquery:"provider_user_id" json:"provider_user_id"`
	TransactionAmount    float64 `bigquery:"transaction_amount" json:"transaction_amount"`
	TransactionTimestamp string  `bigquery:"transaction_timestamp" json:"transaction_timestamp"`
	Status               string  `bigquery:"status" json:"status"`
}
