package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/models"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Warehouse is the subset of BigQuery operations the pipeline needs.
// WarehouseService implements it against the live service; tests use fakes.
type Warehouse interface {
	ExecuteSQL(ctx context.Context, query string) error
	ExecuteSQLWithParams(ctx context.Context, query string, params []bigquery.QueryParameter) (int64, error)
	QueryBaseOrders(ctx context.Context, query string) ([]models.BaseOrder, error)
	QueryRow(ctx context.Context, query string, dst interface{}) error
	EnsureDataset(ctx context.Context, projectID, datasetID string) error
	CreateTable(ctx context.Context, projectID, datasetID, tableID string, schema bigquery.Schema) error
	DeleteTable(ctx context.Context, projectID, datasetID, tableID string) error
	InsertRows(ctx context.Context, projectID, datasetID, tableID string, rows interface{}) error
}

// WarehouseService wraps the BigQuery client with the DDL/DML/query
// operations used by the pipeline. The client bills to a single project but
// can address datasets in either party's project.
type WarehouseService struct {
	client   *bigquery.Client
	location string
}

// NewWarehouseService creates a BigQuery-backed warehouse service billing
// to the given project.
func NewWarehouseService(ctx context.Context, billingProjectID, location string) (*WarehouseService, error) {
	client, err := bigquery.NewClient(ctx, billingProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &WarehouseService{client: client, location: location}, nil
}

// Close releases the underlying client.
func (s *WarehouseService) Close() error {
	return s.client.Close()
}

// ExecuteSQL runs a DDL/DML statement and waits for the job to complete.
func (s *WarehouseService) ExecuteSQL(ctx context.Context, query string) error {
	q := s.client.Query(query)
	q.Location = s.location

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start query job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for query job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("query job failed: %w", err)
	}
	return nil
}

// ExecuteSQLWithParams runs a parameterized DML statement and returns the
// number of affected rows.
func (s *WarehouseService) ExecuteSQLWithParams(ctx context.Context, query string, params []bigquery.QueryParameter) (int64, error) {
	q := s.client.Query(query)
	q.Location = s.location
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start query job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed waiting for query job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("query job failed: %w", err)
	}

	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}

// QueryBaseOrders runs the base-order query and scans all rows.
func (s *WarehouseService) QueryBaseOrders(ctx context.Context, query string) ([]models.BaseOrder, error) {
	q := s.client.Query(query)
	q.Location = s.location

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run base order query: %w", err)
	}

	var orders []models.BaseOrder
	for {
		var order models.BaseOrder
		err := it.Next(&order)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read base order row: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// QueryRow runs a query expected to return a single row and scans it into dst.
func (s *WarehouseService) QueryRow(ctx context.Context, query string, dst interface{}) error {
	q := s.client.Query(query)
	q.Location = s.location

	it, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to run query: %w", err)
	}

	if err := it.Next(dst); err != nil {
		if err == iterator.Done {
			return fmt.Errorf("query returned no rows")
		}
		return fmt.Errorf("failed to read row: %w", err)
	}
	return nil
}

// EnsureDataset creates the dataset if it does not already exist.
func (s *WarehouseService) EnsureDataset(ctx context.Context, projectID, datasetID string) error {
	dataset := s.client.DatasetInProject(projectID, datasetID)

	if _, err := dataset.Metadata(ctx); err == nil {
		logging.Infof("Dataset %s.%s already exists", projectID, datasetID)
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("failed to check dataset %s.%s: %w", projectID, datasetID, err)
	}

	logging.Infof("Dataset %s.%s not found, creating it", projectID, datasetID)
	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{Location: s.location}); err != nil {
		return fmt.Errorf("failed to create dataset %s.%s: %w", projectID, datasetID, err)
	}
	return nil
}

// CreateTable creates the table with the given schema if it does not exist.
func (s *WarehouseService) CreateTable(ctx context.Context, projectID, datasetID, tableID string, schema bigquery.Schema) error {
	table := s.client.DatasetInProject(projectID, datasetID).Table(tableID)

	if _, err := table.Metadata(ctx); err == nil {
		logging.Infof("Table %s.%s.%s already exists", projectID, datasetID, tableID)
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("failed to check table %s: %w", tableID, err)
	}

	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("failed to create table %s.%s.%s: %w", projectID, datasetID, tableID, err)
	}
	logging.Infof("Created table %s.%s.%s", projectID, datasetID, tableID)
	return nil
}

// DeleteTable deletes the table, treating a missing table as success.
func (s *WarehouseService) DeleteTable(ctx context.Context, projectID, datasetID, tableID string) error {
	table := s.client.DatasetInProject(projectID, datasetID).Table(tableID)

	if err := table.Delete(ctx); err != nil {
		if isNotFound(err) {
			logging.Infof("Table %s.%s.%s not found, nothing to delete", projectID, datasetID, tableID)
			return nil
		}
		return fmt.Errorf("failed to delete table %s.%s.%s: %w", projectID, datasetID, tableID, err)
	}
	logging.Infof("Table %s.%s.%s deleted", projectID, datasetID, tableID)
	return nil
}

// InsertRows streams rows into the table. Streaming inserts right after
// table creation can race the table becoming visible, so NotFound is
// retried with exponential backoff.
func (s *WarehouseService) InsertRows(ctx context.Context, projectID, datasetID, tableID string, rows interface{}) error {
	inserter := s.client.DatasetInProject(projectID, datasetID).Table(tableID).Inserter()

	const maxRetries = 3
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = inserter.Put(ctx, rows)
		if lastErr == nil {
			return nil
		}
		if !isNotFound(lastErr) || attempt == maxRetries {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		logging.Infof("Table %s not visible yet, retrying insert in %s (attempt %d/%d)", tableID, wait, attempt, maxRetries)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed to insert rows into %s.%s.%s: %w", projectID, datasetID, tableID, lastErr)
}

// isNotFound reports whether err is a BigQuery 404.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
