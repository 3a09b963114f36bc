package services

import (
	"context"
	"fmt"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/internal/models"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"
)

// SnapshotService creates the merchant-side snapshot tables and queries the
// base orders that feed the synthesizer.
type SnapshotService struct {
	warehouse Warehouse
	cfg       *config.Config
}

// NewSnapshotService creates a snapshot service.
func NewSnapshotService(warehouse Warehouse) *SnapshotService {
	return &SnapshotService{
		warehouse: warehouse,
		cfg:       config.AppConfig,
	}
}

// CreateMerchantSnapshot creates clean, isolated snapshots of the
// merchant's orders, order_items and de-duplicated users for the target
// date, optionally suffixing the table names.
func (s *SnapshotService) CreateMerchantSnapshot(ctx context.Context, targetDate, tableSuffix string) error {
	logging.Infof("Creating or replacing merchant snapshot for date %s (suffix %q)", targetDate, tableSuffix)

	if err := s.warehouse.EnsureDataset(ctx, s.cfg.MerchantProjectID, s.cfg.MerchantDataset); err != nil {
		return err
	}

	logging.Infof("Creating snapshot of 'orders%s' table", tableSuffix)
	if err := s.warehouse.ExecuteSQL(ctx, s.OrdersSnapshotQuery(targetDate, tableSuffix)); err != nil {
		return fmt.Errorf("failed to snapshot orders: %w", err)
	}

	logging.Infof("Creating snapshot of 'order_items%s' table", tableSuffix)
	if err := s.warehouse.ExecuteSQL(ctx, s.OrderItemsSnapshotQuery(tableSuffix)); err != nil {
		return fmt.Errorf("failed to snapshot order_items: %w", err)
	}

	logging.Infof("Creating de-duplicated snapshot of 'users%s' table", tableSuffix)
	if err := s.warehouse.ExecuteSQL(ctx, s.UsersSnapshotQuery(tableSuffix)); err != nil {
		return fmt.Errorf("failed to snapshot users: %w", err)
	}

	logging.Infof("Merchant snapshot complete")
	return nil
}

// FetchBaseOrders queries the snapshot for per-order base records,
// excluding cancelled and returned orders.
func (s *SnapshotService) FetchBaseOrders(ctx context.Context, tableSuffix string) ([]models.BaseOrder, error) {
	orders, err := s.warehouse.QueryBaseOrders(ctx, s.BaseOrdersQuery(tableSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base orders: %w", err)
	}
	return orders, nil
}

// OrdersSnapshotQuery renders the orders snapshot DDL for the target date.
func (s *SnapshotService) OrdersSnapshotQuery(targetDate, tableSuffix string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE TABLE `+"`%s.%s.orders%s`"+` AS
SELECT * FROM `+"`%s.%s.orders`"+`
WHERE DATE(created_at) = DATE('%s')`,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix,
		s.cfg.SourceProjectID, s.cfg.SourceDataset,
		targetDate)
}

// OrderItemsSnapshotQuery renders the order_items snapshot DDL, restricted
// to orders present in the orders snapshot.
func (s *SnapshotService) OrderItemsSnapshotQuery(tableSuffix string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE TABLE `+"`%s.%s.order_items%s`"+` AS
SELECT t2.* FROM `+"`%s.%s.orders%s`"+` AS t1
JOIN `+"`%s.%s.order_items`"+` AS t2 ON t1.order_id = t2.order_id`,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix,
		s.cfg.SourceProjectID, s.cfg.SourceDataset)
}

// UsersSnapshotQuery renders the users snapshot DDL, keeping the most
// recent record per user id.
func (s *SnapshotService) UsersSnapshotQuery(tableSuffix string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE TABLE `+"`%s.%s.users%s`"+` AS
WITH RankedUsers AS (
    SELECT u.*, ROW_NUMBER() OVER(PARTITION BY u.id ORDER BY u.created_at DESC) as rn
    FROM `+"`%s.%s.users`"+` AS u
    WHERE u.id IN (SELECT DISTINCT user_id FROM `+"`%s.%s.orders%s`"+`)
)
SELECT * EXCEPT(rn) FROM RankedUsers WHERE rn = 1`,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix,
		s.cfg.SourceProjectID, s.cfg.SourceDataset,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix)
}

// BaseOrdersQuery renders the per-order aggregation over the snapshot.
func (s *SnapshotService) BaseOrdersQuery(tableSuffix string) string {
	return fmt.Sprintf(`
SELECT
    a.order_id, a.user_id, u.email, u.city, a.status,
    SUM(b.sale_price) AS total_price, a.created_at
FROM `+"`%s.%s.orders%s`"+` AS a
JOIN `+"`%s.%s.order_items%s`"+` AS b ON a.order_id = b.order_id
JOIN `+"`%s.%s.users%s`"+` AS u ON a.user_id = u.id
WHERE a.status NOT IN ('Cancelled', 'Returned')
GROUP BY a.order_id, a.user_id, u.email, u.city, a.status, a.created_at`,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix,
		s.cfg.MerchantProjectID, s.cfg.MerchantDataset, tableSuffix)
}
