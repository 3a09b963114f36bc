package services

import (
	"context"
	"fmt"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/internal/database"
	"github.com/johanesalxd/data-clean-room-demo/internal/generator"
	"github.com/johanesalxd/data-clean-room-demo/internal/models"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderUsersTable = "provider_users"
	TransactionsTable  = "transactions"

	runLockTTL = 30 * time.Minute
)

// PipelineService orchestrates one full generation run: merchant snapshot,
// base-order fetch, synthetic data generation, provider table recreation
// and load. Runs are recorded in the history database.
type PipelineService struct {
	warehouse   Warehouse
	snapshots   *SnapshotService
	synthesizer *generator.Synthesizer
	locks       RunLocker
	notifier    *WebhookNotifier
	db          *gorm.DB
	cfg         *config.Config
}

// NewPipelineService creates a pipeline service on the shared database.
func NewPipelineService(warehouse Warehouse, locks RunLocker) *PipelineService {
	synthesizer := generator.NewSynthesizer()
	synthesizer.SampleRate = config.AppConfig.SampleRate

	return &PipelineService{
		warehouse:   warehouse,
		snapshots:   NewSnapshotService(warehouse),
		synthesizer: synthesizer,
		locks:       locks,
		notifier:    NewWebhookNotifier(),
		db:          database.GetDB(),
		cfg:         config.AppConfig,
	}
}

// StartRun registers a pending run and executes it in the background.
func (s *PipelineService) StartRun(targetDate, tableSuffix string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		RunID:       uuid.NewString(),
		TargetDate:  targetDate,
		TableSuffix: tableSuffix,
		Status:      models.RunStatusPending,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record pipeline run: %w", err)
	}

	// The background run mutates its record while it progresses, so the
	// caller gets a detached copy of the pending state.
	accepted := *run

	go func() {
		if err := s.ExecuteRun(context.Background(), run); err != nil {
			logging.Errorf("Pipeline run %s failed: %v", run.RunID, err)
		}
	}()

	return &accepted, nil
}

// ExecuteRun performs the run synchronously and records its outcome.
func (s *PipelineService) ExecuteRun(ctx context.Context, run *models.PipelineRun) error {
	acquired, err := s.locks.AcquireRunLock(ctx, run.TargetDate, run.TableSuffix, runLockTTL)
	if err != nil {
		return s.failRun(run, err)
	}
	if !acquired {
		return s.failRun(run, fmt.Errorf("another run for date %s suffix %q is in progress", run.TargetDate, run.TableSuffix))
	}
	defer func() {
		if err := s.locks.ReleaseRunLock(ctx, run.TargetDate, run.TableSuffix); err != nil {
			logging.Errorf("Failed to release run lock: %v", err)
		}
	}()

	now := time.Now()
	run.Status = models.RunStatusRunning
	run.StartedAt = &now
	if err := s.db.Save(run).Error; err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}

	logging.Infof("Starting data generation for date %s (suffix %q)", run.TargetDate, run.TableSuffix)

	if err := s.snapshots.CreateMerchantSnapshot(ctx, run.TargetDate, run.TableSuffix); err != nil {
		return s.failRun(run, err)
	}

	logging.Infof("Fetching base order data from snapshot")
	baseOrders, err := s.snapshots.FetchBaseOrders(ctx, run.TableSuffix)
	if err != nil {
		return s.failRun(run, err)
	}

	logging.Infof("Received %d base orders, applying %.0f%% sampling", len(baseOrders), s.synthesizer.SampleRate*100)
	providerUsers, transactions := s.synthesizer.Generate(baseOrders)
	logging.Infof("Generated %d provider users and %d transactions", len(providerUsers), len(transactions))

	if err := s.loadProviderTables(ctx, run.TableSuffix, providerUsers, transactions); err != nil {
		return s.failRun(run, err)
	}

	finished := time.Now()
	run.Status = models.RunStatusSucceeded
	run.BaseOrderCount = len(baseOrders)
	run.SampledCount = len(transactions)
	run.ProviderUsers = len(providerUsers)
	run.TransactionCount = len(transactions)
	run.FinishedAt = &finished
	if err := s.db.Save(run).Error; err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}

	s.finishRun(ctx, run)
	logging.Infof("Data generation complete for run %s", run.RunID)
	return nil
}

// loadProviderTables recreates the provider tables and streams the
// generated rows in output order.
func (s *PipelineService) loadProviderTables(ctx context.Context, tableSuffix string, providerUsers []models.ProviderUser, transactions []models.Transaction) error {
	usersTable := ProviderUsersTable + tableSuffix
	transactionsTable := TransactionsTable + tableSuffix

	logging.Infof("Preparing dataset and tables in %q", s.cfg.ProviderDataset)
	if err := s.warehouse.EnsureDataset(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset); err != nil {
		return err
	}

	// Delete first so the tables are recreated with the right schema
	if err := s.warehouse.DeleteTable(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset, usersTable); err != nil {
		return err
	}
	if err := s.warehouse.DeleteTable(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset, transactionsTable); err != nil {
		return err
	}

	if err := s.warehouse.CreateTable(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset, usersTable, ProviderUsersSchema()); err != nil {
		return err
	}
	if err := s.warehouse.CreateTable(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset, transactionsTable, TransactionsSchema()); err != nil {
		return err
	}

	if len(providerUsers) == 0 {
		logging.Infof("No provider users to insert into %s", usersTable)
	} else if err := s.warehouse.InsertRows(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset, usersTable, providerUsers); err != nil {
		return err
	}

	if len(transactions) == 0 {
		logging.Infof("No transactions to insert into %s", transactionsTable)
	} else if err := s.warehouse.InsertRows(ctx, s.cfg.ProviderProjectID, s.cfg.ProviderDataset, transactionsTable, transactions); err != nil {
		return err
	}

	return nil
}

// failRun marks the run failed and returns the original error.
func (s *PipelineService) failRun(run *models.PipelineRun, runErr error) error {
	finished := time.Now()
	run.Status = models.RunStatusFailed
	run.ErrorMsg = runErr.Error()
	run.FinishedAt = &finished
	if err := s.db.Save(run).Error; err != nil {
		logging.Errorf("Failed to record run failure: %v", err)
	}
	s.finishRun(context.Background(), run)
	return runErr
}

// finishRun caches the run summary and fires the completion webhook.
func (s *PipelineService) finishRun(ctx context.Context, run *models.PipelineRun) {
	if err := s.locks.CacheLastRun(ctx, run); err != nil {
		logging.Errorf("Failed to cache run summary: %v", err)
	}
	if s.notifier != nil {
		go s.notifier.NotifyRunFinished(s.cfg.WebhookCallbackURL, s.cfg.WebhookSecret, run)
	}
}

// GetRun returns a run by its public ID.
func (s *PipelineService) GetRun(runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	result := s.db.Where("run_id = ?", runID).First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("run not found")
		}
		return nil, result.Error
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PipelineService) ListRuns(limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.PipelineRun
	result := s.db.Order("created_at DESC").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// DiagnosticResult is the outcome of the referential spot check between
// the provider transactions and the merchant orders snapshot.
type DiagnosticResult struct {
	SampleOrderID   int64 `json:"sample_order_id"`
	FoundInSnapshot bool  `json:"found_in_snapshot"`
}

// RunDiagnostic fetches one order_id from the provider transactions table
// and checks it exists in the merchant orders snapshot.
func (s *PipelineService) RunDiagnostic(ctx context.Context) (*DiagnosticResult, error) {
	sampleQuery := fmt.Sprintf(
		"SELECT order_id FROM `%s.%s.%s` LIMIT 1",
		s.cfg.ProviderProjectID, s.cfg.ProviderDataset, TransactionsTable)

	var sample struct {
		OrderID int64 `bigquery:"order_id"`
	}
	if err := s.warehouse.QueryRow(ctx, sampleQuery, &sample); err != nil {
		return nil, fmt.Errorf("failed to sample a transaction order_id: %w", err)
	}

	checkQuery := fmt.Sprintf(
		"SELECT COUNT(*) as count FROM `%s.%s.orders` WHERE order_id = %d",
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, sample.OrderID)

	var check struct {
		Count int64 `bigquery:"count"`
	}
	if err := s.warehouse.QueryRow(ctx, checkQuery, &check); err != nil {
		return nil, fmt.Errorf("failed to check order_id in snapshot: %w", err)
	}

	return &DiagnosticResult{
		SampleOrderID:   sample.OrderID,
		FoundInSnapshot: check.Count > 0,
	}, nil
}

// ProviderUsersSchema is the provider_users table schema.
func ProviderUsersSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "provider_user_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "email", Type: bigquery.StringFieldType, Required: true},
		{Name: "date_of_birth", Type: bigquery.DateFieldType},
		{Name: "city", Type: bigquery.StringFieldType},
		{Name: "account_tier", Type: bigquery.StringFieldType},
		{Name: "is_verified_user", Type: bigquery.BooleanFieldType},
	}
}

// TransactionsSchema is the transactions table schema.
func TransactionsSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "transaction_id", Type: bigquery.StringFieldType, Required: true},
		{Name: "order_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "provider_user_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "transaction_amount", Type: bigquery.FloatFieldType},
		{Name: "transaction_timestamp", Type: bigquery.TimestampFieldType},
		{Name: "status", Type: bigquery.StringFieldType},
	}
}
