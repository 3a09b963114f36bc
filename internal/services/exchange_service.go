package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/internal/database"
	"github.com/johanesalxd/data-clean-room-demo/internal/models"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"

	analyticshub "cloud.google.com/go/bigquery/analyticshub/apiv1"
	"cloud.google.com/go/bigquery/analyticshub/apiv1/analyticshubpb"
	"cloud.google.com/go/iam/apiv1/iampb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

const subscriberRole = "roles/analyticshub.subscriber"

// ProvisionRequest describes one exchange/listing pair to provision.
type ProvisionRequest struct {
	ExchangeID      string `json:"exchange_id" binding:"required"`
	ListingID       string `json:"listing_id" binding:"required"`
	SubscriberEmail string `json:"subscriber_email" binding:"required,email"`
	CleanRoom       bool   `json:"clean_room"`
	Dataset         string `json:"dataset"`
	Table           string `json:"table"`
}

// ExchangeService provisions Analytics Hub data exchanges and listings.
// Plain exchanges share the whole provider dataset; clean-room exchanges
// share privacy-enforced views with analysis rules.
type ExchangeService struct {
	client    *analyticshub.Client
	warehouse Warehouse
	notifier  *EmailNotifier
	db        *gorm.DB
	cfg       *config.Config
}

// NewExchangeService creates an exchange service.
func NewExchangeService(ctx context.Context, warehouse Warehouse) (*ExchangeService, error) {
	client, err := analyticshub.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Analytics Hub client: %w", err)
	}

	return &ExchangeService{
		client:    client,
		warehouse: warehouse,
		notifier:  NewEmailNotifier(),
		db:        database.GetDB(),
		cfg:       config.AppConfig,
	}, nil
}

// Close releases the underlying client.
func (s *ExchangeService) Close() error {
	return s.client.Close()
}

// Provision creates the exchange and listing, grants the subscriber access
// and records the result. Already-existing resources are treated as
// success so provisioning can be re-run.
func (s *ExchangeService) Provision(ctx context.Context, req ProvisionRequest) (*models.Exchange, error) {
	dataset := req.Dataset
	if dataset == "" {
		dataset = s.cfg.ProviderDataset
	}
	table := req.Table
	if table == "" {
		table = ProviderUsersTable
	}

	exchangeName, err := s.ensureExchange(ctx, req.ExchangeID, req.CleanRoom)
	if err != nil {
		return nil, err
	}

	var listingName string
	if req.CleanRoom {
		listingName, err = s.createCleanRoomListing(ctx, exchangeName, req.ListingID, dataset, table)
	} else {
		listingName, err = s.createListing(ctx, exchangeName, req.ListingID, dataset)
	}
	if err != nil {
		return nil, err
	}

	if err := s.grantSubscriber(ctx, listingName, req.SubscriberEmail); err != nil {
		return nil, err
	}

	record := &models.Exchange{
		ExchangeID:       req.ExchangeID,
		ListingID:        req.ListingID,
		ExchangeResource: exchangeName,
		ListingResource:  listingName,
		CleanRoom:        req.CleanRoom,
		Dataset:          dataset,
		Table:            table,
		SubscriberEmail:  req.SubscriberEmail,
		Status:           "provisioned",
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to record exchange: %w", err)
	}

	go s.notifier.NotifyListingProvisioned(req.SubscriberEmail, record)

	return record, nil
}

// ListExchanges returns provisioned exchange records, newest first.
func (s *ExchangeService) ListExchanges() ([]models.Exchange, error) {
	var exchanges []models.Exchange
	result := s.db.Order("created_at DESC").Find(&exchanges)
	if result.Error != nil {
		return nil, result.Error
	}
	return exchanges, nil
}

// ensureExchange creates the exchange (clean room or plain) in the
// provider's project, returning the existing resource on AlreadyExists.
func (s *ExchangeService) ensureExchange(ctx context.Context, exchangeID string, cleanRoom bool) (string, error) {
	parent := fmt.Sprintf("projects/%s/locations/%s", s.cfg.ProviderProjectID, s.cfg.Location)

	exchange := &analyticshubpb.DataExchange{
		DisplayName:    "E-Wallet Provider Data Exchange",
		Description:    "Data exchange for sharing e-wallet provider data with merchant partners",
		PrimaryContact: "provider-admin@example.com",
		Documentation:  "This exchange contains e-wallet transaction and user data for collaborative analytics.",
	}
	if cleanRoom {
		exchange.DisplayName = cleanRoomDisplayName(exchangeID)
		exchange.Description = "Privacy-preserving data clean room for collaborative analytics between merchant and e-wallet provider"
		exchange.PrimaryContact = "data-sharing-admin@example.com"
		exchange.Documentation = "This clean room enables secure data collaboration with automatic privacy controls and analysis rules."
		exchange.SharingEnvironmentConfig = &analyticshubpb.SharingEnvironmentConfig{
			Environment: &analyticshubpb.SharingEnvironmentConfig_DcrExchangeConfig_{
				DcrExchangeConfig: &analyticshubpb.SharingEnvironmentConfig_DcrExchangeConfig{},
			},
		}
	}

	logging.Infof("Creating data exchange %q in %s", exchangeID, parent)
	created, err := s.client.CreateDataExchange(ctx, &analyticshubpb.CreateDataExchangeRequest{
		Parent:         parent,
		DataExchangeId: exchangeID,
		DataExchange:   exchange,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			name := fmt.Sprintf("%s/dataExchanges/%s", parent, exchangeID)
			logging.Infof("Data exchange already exists: %s", name)
			return name, nil
		}
		return "", fmt.Errorf("failed to create data exchange: %w", err)
	}

	logging.Infof("Data exchange created: %s", created.Name)
	return created.Name, nil
}

// createListing shares the whole provider dataset in a plain listing.
func (s *ExchangeService) createListing(ctx context.Context, exchangeName, listingID, dataset string) (string, error) {
	logging.Infof("Creating listing %q in exchange", listingID)

	created, err := s.client.CreateListing(ctx, &analyticshubpb.CreateListingRequest{
		Parent:    exchangeName,
		ListingId: listingID,
		Listing:   plainListing(s.cfg.ProviderProjectID, dataset),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			name := fmt.Sprintf("%s/listings/%s", exchangeName, listingID)
			logging.Infof("Listing already exists: %s", name)
			return name, nil
		}
		return "", fmt.Errorf("failed to create listing: %w", err)
	}

	logging.Infof("Listing created: %s", created.Name)
	return created.Name, nil
}

// createCleanRoomListing creates a privacy-enforced view over the shared
// table and lists the dataset carrying it, with query results restricted
// from export.
func (s *ExchangeService) createCleanRoomListing(ctx context.Context, exchangeName, listingID, dataset, table string) (string, error) {
	viewName, err := s.createPrivacyView(ctx, dataset, table, listingID)
	if err != nil {
		return "", err
	}

	logging.Infof("Creating clean room listing %q for table %s.%s", listingID, dataset, table)
	created, err := s.client.CreateListing(ctx, &analyticshubpb.CreateListingRequest{
		Parent:    exchangeName,
		ListingId: listingID,
		Listing:   cleanRoomListing(s.sharingProjectID(dataset), dataset, table, viewName),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			name := fmt.Sprintf("%s/listings/%s", exchangeName, listingID)
			logging.Infof("Listing already exists: %s", name)
			return name, nil
		}
		return "", fmt.Errorf("failed to create clean room listing: %w", err)
	}

	logging.Infof("Clean room listing created: %s", created.Name)
	return created.Name, nil
}

// plainListing describes a listing sharing the whole provider dataset.
func plainListing(projectID, dataset string) *analyticshubpb.Listing {
	return &analyticshubpb.Listing{
		DisplayName:    "E-Wallet Provider Dataset",
		Description:    "Complete e-wallet provider dataset including user profiles and transaction data",
		PrimaryContact: "provider-admin@example.com",
		Documentation:  fmt.Sprintf("This listing provides access to the %s dataset containing provider_users and transactions tables.", dataset),
		Source: &analyticshubpb.Listing_BigqueryDataset{
			BigqueryDataset: &analyticshubpb.Listing_BigQueryDatasetSource{
				Dataset: fmt.Sprintf("projects/%s/datasets/%s", projectID, dataset),
			},
		},
		Categories: []analyticshubpb.Listing_Category{
			analyticshubpb.Listing_CATEGORY_FINANCIAL,
			analyticshubpb.Listing_CATEGORY_RETAIL,
		},
	}
}

// cleanRoomListing describes a listing sharing the dataset that holds the
// privacy-enforced view, with export of query results disabled.
func cleanRoomListing(projectID, dataset, table, viewName string) *analyticshubpb.Listing {
	return &analyticshubpb.Listing{
		DisplayName:    fmt.Sprintf("Privacy-Enforced %s", table),
		Description:    fmt.Sprintf("DCR listing with analysis rules for %s.%s.", dataset, table),
		PrimaryContact: "data-sharing-admin@example.com",
		Documentation:  fmt.Sprintf("Subscribers query the %s view over the %s table. Analysis rules automatically restrict queries to comply with privacy policies.", viewName, table),
		Source: &analyticshubpb.Listing_BigqueryDataset{
			BigqueryDataset: &analyticshubpb.Listing_BigQueryDatasetSource{
				Dataset: fmt.Sprintf("projects/%s/datasets/%s", projectID, dataset),
			},
		},
		Categories: []analyticshubpb.Listing_Category{
			analyticshubpb.Listing_CATEGORY_FINANCIAL,
			analyticshubpb.Listing_CATEGORY_RETAIL,
		},
		RestrictedExportConfig: &analyticshubpb.Listing_RestrictedExportConfig{
			Enabled:             true,
			RestrictQueryResult: true,
		},
	}
}

// createPrivacyView creates the view carrying the analysis rules for the
// shared table and returns the view name.
func (s *ExchangeService) createPrivacyView(ctx context.Context, dataset, table, listingID string) (string, error) {
	policy, err := s.PrivacyPolicy(dataset, table)
	if err != nil {
		return "", err
	}

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return "", fmt.Errorf("failed to marshal privacy policy: %w", err)
	}

	viewName := listingID + "_view"
	query := fmt.Sprintf(`
CREATE OR REPLACE VIEW `+"`%s.%s.%s`"+`
OPTIONS(
    privacy_policy = '%s'
)
AS SELECT * FROM `+"`%s.%s.%s`",
		s.sharingProjectID(dataset), dataset, viewName,
		policyJSON,
		s.sharingProjectID(dataset), dataset, table)

	logging.Infof("Creating privacy-enforced view %q for table %q", viewName, table)
	if err := s.warehouse.ExecuteSQL(ctx, query); err != nil {
		return "", fmt.Errorf("failed to create privacy view: %w", err)
	}
	return viewName, nil
}

// PrivacyPolicy returns the analysis rules for a shared table. Provider
// user tables get an aggregation threshold over the hashed email privacy
// unit; transaction and merchant user tables get join restrictions only.
func (s *ExchangeService) PrivacyPolicy(dataset, table string) (map[string]interface{}, error) {
	switch dataset {
	case s.cfg.ProviderDataset:
		switch table {
		case ProviderUsersTable:
			return map[string]interface{}{
				"aggregation_threshold_policy": map[string]interface{}{
					"threshold":           50,
					"privacy_unit_column": "hashed_email",
				},
				"join_restriction_policy": map[string]interface{}{
					"join_condition":       "JOIN_ANY",
					"join_allowed_columns": []string{"hashed_email"},
				},
			}, nil
		case TransactionsTable:
			return map[string]interface{}{
				"join_restriction_policy": map[string]interface{}{
					"join_condition":       "JOIN_ANY",
					"join_allowed_columns": []string{"order_id"},
				},
			}, nil
		}
	case s.cfg.MerchantDataset:
		if table == "users" {
			return map[string]interface{}{
				"join_restriction_policy": map[string]interface{}{
					"join_condition":       "JOIN_ANY",
					"join_allowed_columns": []string{"hashed_email"},
				},
			}, nil
		}
	}
	return nil, fmt.Errorf("unsupported table for clean room sharing: %s.%s", dataset, table)
}

// grantSubscriber merges the subscriber into the listing's IAM policy.
func (s *ExchangeService) grantSubscriber(ctx context.Context, listingName, subscriberEmail string) error {
	logging.Infof("Granting access to %s", subscriberEmail)

	policy, err := s.client.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: listingName})
	if err != nil {
		return fmt.Errorf("failed to get IAM policy: %w", err)
	}

	member := "user:" + subscriberEmail
	var binding *iampb.Binding
	for _, b := range policy.Bindings {
		if b.Role == subscriberRole {
			binding = b
			break
		}
	}

	if binding != nil {
		for _, m := range binding.Members {
			if m == member {
				logging.Infof("%s already has subscriber access", subscriberEmail)
				return nil
			}
		}
		binding.Members = append(binding.Members, member)
	} else {
		policy.Bindings = append(policy.Bindings, &iampb.Binding{
			Role:    subscriberRole,
			Members: []string{member},
		})
	}

	if _, err := s.client.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{
		Resource: listingName,
		Policy:   policy,
	}); err != nil {
		return fmt.Errorf("failed to set IAM policy: %w", err)
	}

	logging.Infof("IAM policy updated for %s", listingName)
	return nil
}

// sharingProjectID maps a dataset to the project of the party sharing it.
func (s *ExchangeService) sharingProjectID(dataset string) string {
	if dataset == s.cfg.MerchantDataset {
		return s.cfg.MerchantProjectID
	}
	return s.cfg.ProviderProjectID
}

// cleanRoomDisplayName derives a user-friendly display name from the
// exchange ID.
func cleanRoomDisplayName(exchangeID string) string {
	id := strings.ToLower(exchangeID)
	switch {
	case strings.Contains(id, "provider"):
		return "E-Wallet Provider Data Clean Room"
	case strings.Contains(id, "merchant"):
		return "Merchant Data Clean Room"
	case strings.Contains(id, "shared"):
		return "Shared Data Clean Room"
	default:
		return "Data Clean Room"
	}
}
