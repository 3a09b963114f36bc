package services

import (
	"context"
	"fmt"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"

	"cloud.google.com/go/bigquery"
)

// HashedTable identifies one table that receives a hashed_email column.
type HashedTable struct {
	ProjectID   string `json:"project_id"`
	Dataset     string `json:"dataset"`
	Table       string `json:"table"`
	Description string `json:"description"`
}

// HashResult reports the hashing outcome for one table.
type HashResult struct {
	HashedTable
	UpdatedRows  int64 `json:"updated_rows"`
	TotalRows    int64 `json:"total_rows"`
	HashedRows   int64 `json:"hashed_rows"`
	UniqueHashes int64 `json:"unique_hashes"`
}

// HashingService adds deterministic salted one-way email hashes to the
// join tables on both sides so parties can join without exposing raw
// email addresses.
type HashingService struct {
	warehouse Warehouse
	cfg       *config.Config
}

// NewHashingService creates a hashing service.
func NewHashingService(warehouse Warehouse) *HashingService {
	return &HashingService{
		warehouse: warehouse,
		cfg:       config.AppConfig,
	}
}

// Tables returns the tables that need hashed_email columns.
func (s *HashingService) Tables() []HashedTable {
	return []HashedTable{
		{ProjectID: s.cfg.MerchantProjectID, Dataset: s.cfg.MerchantDataset, Table: "users", Description: "Merchant users (training)"},
		{ProjectID: s.cfg.MerchantProjectID, Dataset: s.cfg.MerchantDataset, Table: "users_inference", Description: "Merchant users (inference)"},
		{ProjectID: s.cfg.ProviderProjectID, Dataset: s.cfg.ProviderDataset, Table: "provider_users", Description: "Provider users (training)"},
		{ProjectID: s.cfg.ProviderProjectID, Dataset: s.cfg.ProviderDataset, Table: "provider_users_inference", Description: "Provider users (inference)"},
	}
}

// AddHashedEmailColumns adds and populates hashed_email on every join
// table, then verifies the result per table.
func (s *HashingService) AddHashedEmailColumns(ctx context.Context) ([]HashResult, error) {
	logging.Infof("Adding secure hashed email columns (salt prefix %s...)", s.cfg.SecretSalt[:min(len(s.cfg.SecretSalt), 20)])

	results := make([]HashResult, 0, 4)
	for _, table := range s.Tables() {
		result, err := s.hashTable(ctx, table)
		if err != nil {
			return results, fmt.Errorf("failed to hash %s: %w", table.Table, err)
		}
		results = append(results, *result)
	}
	return results, nil
}

func (s *HashingService) hashTable(ctx context.Context, table HashedTable) (*HashResult, error) {
	tableID := fmt.Sprintf("%s.%s.%s", table.ProjectID, table.Dataset, table.Table)
	logging.Infof("Processing %s: %s", table.Description, tableID)

	if err := s.warehouse.ExecuteSQL(ctx, AddColumnQuery(tableID)); err != nil {
		return nil, fmt.Errorf("failed to add hashed_email column: %w", err)
	}

	updated, err := s.warehouse.ExecuteSQLWithParams(ctx, PopulateHashQuery(tableID), []bigquery.QueryParameter{
		{Name: "salt", Value: s.cfg.SecretSalt},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to populate hashed_email: %w", err)
	}
	logging.Infof("Updated %d rows in %s", updated, tableID)

	var counts struct {
		TotalRows    int64 `bigquery:"total_rows"`
		HashedRows   int64 `bigquery:"hashed_rows"`
		UniqueHashes int64 `bigquery:"unique_hashes"`
	}
	if err := s.warehouse.QueryRow(ctx, VerifyHashQuery(tableID), &counts); err != nil {
		return nil, fmt.Errorf("failed to verify hashed_email: %w", err)
	}
	logging.Infof("Verification for %s: %d total rows, %d hashed, %d unique hashes",
		tableID, counts.TotalRows, counts.HashedRows, counts.UniqueHashes)

	return &HashResult{
		HashedTable:  table,
		UpdatedRows:  updated,
		TotalRows:    counts.TotalRows,
		HashedRows:   counts.HashedRows,
		UniqueHashes: counts.UniqueHashes,
	}, nil
}

// AddColumnQuery renders the DDL adding the hashed_email column.
func AddColumnQuery(tableID string) string {
	return fmt.Sprintf("ALTER TABLE `%s`\nADD COLUMN IF NOT EXISTS hashed_email STRING", tableID)
}

// PopulateHashQuery renders the parameterized UPDATE computing the salted
// one-way hash for rows not yet hashed.
func PopulateHashQuery(tableID string) string {
	return fmt.Sprintf("UPDATE `%s`\nSET hashed_email = TO_BASE64(SHA256(CONCAT(email, @salt)))\nWHERE hashed_email IS NULL", tableID)
}

// VerifyHashQuery renders the verification counts query.
func VerifyHashQuery(tableID string) string {
	return fmt.Sprintf(`
SELECT
    COUNT(*) as total_rows,
    COUNT(hashed_email) as hashed_rows,
    COUNT(DISTINCT hashed_email) as unique_hashes
FROM `+"`%s`", tableID)
}
