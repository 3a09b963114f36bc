package services

import (
	"testing"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	config.AppConfig = &config.Config{
		MerchantProjectID: "merchant-proj",
		ProviderProjectID: "provider-proj",
		SourceProjectID:   "bigquery-public-data",
		SourceDataset:     "thelook_ecommerce",
		MerchantDataset:   "merchant_provider",
		ProviderDataset:   "ewallet_provider",
		Location:          "US",
		SampleRate:        0.5,
		SecretSalt:        "test-salt",
	}
}

func TestOrdersSnapshotQuery(t *testing.T) {
	setTestConfig(t)
	s := NewSnapshotService(nil)

	query := s.OrdersSnapshotQuery("2024-01-15", "")
	assert.Contains(t, query, "CREATE OR REPLACE TABLE `merchant-proj.merchant_provider.orders`")
	assert.Contains(t, query, "FROM `bigquery-public-data.thelook_ecommerce.orders`")
	assert.Contains(t, query, "WHERE DATE(created_at) = DATE('2024-01-15')")

	suffixed := s.OrdersSnapshotQuery("2024-01-15", "_inference")
	assert.Contains(t, suffixed, "`merchant-proj.merchant_provider.orders_inference`")
}

func TestOrderItemsSnapshotQuery(t *testing.T) {
	setTestConfig(t)
	s := NewSnapshotService(nil)

	query := s.OrderItemsSnapshotQuery("_inference")
	assert.Contains(t, query, "CREATE OR REPLACE TABLE `merchant-proj.merchant_provider.order_items_inference`")
	assert.Contains(t, query, "`merchant-proj.merchant_provider.orders_inference` AS t1")
	assert.Contains(t, query, "JOIN `bigquery-public-data.thelook_ecommerce.order_items` AS t2")
}

func TestUsersSnapshotQuery(t *testing.T) {
	setTestConfig(t)
	s := NewSnapshotService(nil)

	query := s.UsersSnapshotQuery("")
	assert.Contains(t, query, "CREATE OR REPLACE TABLE `merchant-proj.merchant_provider.users`")
	assert.Contains(t, query, "ROW_NUMBER() OVER(PARTITION BY u.id ORDER BY u.created_at DESC)")
	assert.Contains(t, query, "SELECT * EXCEPT(rn) FROM RankedUsers WHERE rn = 1")
}

func TestBaseOrdersQuery(t *testing.T) {
	setTestConfig(t)
	s := NewSnapshotService(nil)

	query := s.BaseOrdersQuery("")
	require.Contains(t, query, "SUM(b.sale_price) AS total_price")
	assert.Contains(t, query, "WHERE a.status NOT IN ('Cancelled', 'Returned')")
	assert.Contains(t, query, "GROUP BY a.order_id, a.user_id, u.email, u.city, a.status, a.created_at")
	assert.Contains(t, query, "`merchant-proj.merchant_provider.orders` AS a")
}
