package services

import (
	"testing"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"

	"cloud.google.com/go/bigquery/analyticshub/apiv1/analyticshubpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExchangeService(t *testing.T) *ExchangeService {
	t.Helper()
	setTestConfig(t)
	return &ExchangeService{cfg: config.AppConfig}
}

func TestPrivacyPolicyProviderUsers(t *testing.T) {
	s := newTestExchangeService(t)

	policy, err := s.PrivacyPolicy("ewallet_provider", "provider_users")
	require.NoError(t, err)

	agg, ok := policy["aggregation_threshold_policy"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 50, agg["threshold"])
	assert.Equal(t, "hashed_email", agg["privacy_unit_column"])

	join, ok := policy["join_restriction_policy"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "JOIN_ANY", join["join_condition"])
	assert.Equal(t, []string{"hashed_email"}, join["join_allowed_columns"])
}

func TestPrivacyPolicyTransactions(t *testing.T) {
	s := newTestExchangeService(t)

	policy, err := s.PrivacyPolicy("ewallet_provider", "transactions")
	require.NoError(t, err)

	_, hasAgg := policy["aggregation_threshold_policy"]
	assert.False(t, hasAgg)

	join, ok := policy["join_restriction_policy"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []string{"order_id"}, join["join_allowed_columns"])
}

func TestPrivacyPolicyMerchantUsers(t *testing.T) {
	s := newTestExchangeService(t)

	policy, err := s.PrivacyPolicy("merchant_provider", "users")
	require.NoError(t, err)

	join, ok := policy["join_restriction_policy"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []string{"hashed_email"}, join["join_allowed_columns"])
}

func TestPrivacyPolicyUnsupportedTable(t *testing.T) {
	s := newTestExchangeService(t)

	_, err := s.PrivacyPolicy("merchant_provider", "orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported table")

	_, err = s.PrivacyPolicy("unknown_dataset", "provider_users")
	assert.Error(t, err)
}

func TestSharingProjectID(t *testing.T) {
	s := newTestExchangeService(t)

	assert.Equal(t, "merchant-proj", s.sharingProjectID("merchant_provider"))
	assert.Equal(t, "provider-proj", s.sharingProjectID("ewallet_provider"))
	assert.Equal(t, "provider-proj", s.sharingProjectID("anything_else"))
}

func TestPlainListing(t *testing.T) {
	listing := plainListing("provider-proj", "ewallet_provider")

	assert.Equal(t, "E-Wallet Provider Dataset", listing.DisplayName)
	assert.Equal(t, "projects/provider-proj/datasets/ewallet_provider", listing.GetBigqueryDataset().GetDataset())
	assert.Nil(t, listing.RestrictedExportConfig)
	assert.Contains(t, listing.Categories, analyticshubpb.Listing_CATEGORY_FINANCIAL)
	assert.Contains(t, listing.Categories, analyticshubpb.Listing_CATEGORY_RETAIL)
}

func TestCleanRoomListing(t *testing.T) {
	listing := cleanRoomListing("provider-proj", "ewallet_provider", "provider_users", "dcr_listing_view")

	assert.Equal(t, "Privacy-Enforced provider_users", listing.DisplayName)
	assert.Equal(t, "projects/provider-proj/datasets/ewallet_provider", listing.GetBigqueryDataset().GetDataset())
	assert.Contains(t, listing.Documentation, "dcr_listing_view")

	require.NotNil(t, listing.RestrictedExportConfig)
	assert.True(t, listing.RestrictedExportConfig.Enabled)
	assert.True(t, listing.RestrictedExportConfig.RestrictQueryResult)
}

func TestCleanRoomDisplayName(t *testing.T) {
	assert.Equal(t, "E-Wallet Provider Data Clean Room", cleanRoomDisplayName("provider_dcr"))
	assert.Equal(t, "Merchant Data Clean Room", cleanRoomDisplayName("Merchant-Exchange"))
	assert.Equal(t, "Shared Data Clean Room", cleanRoomDisplayName("shared_room"))
	assert.Equal(t, "Data Clean Room", cleanRoomDisplayName("analytics"))
}
