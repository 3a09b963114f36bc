package generator

import (
	"math/rand"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/models"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// DefaultSampleRate simulates the provider's market share among the
// merchant's orders.
const DefaultSampleRate = 0.5

// Date of birth range for synthetic users
var (
	dobStart = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)
	dobEnd   = time.Date(2005, time.December, 31, 0, 0, 0, 0, time.UTC)
)

var accountTiers = []string{"Free", "Premium", "Business"}

// Synthesizer generates the e-wallet provider's synthetic dataset from a
// batch of merchant base orders. Rand, SampleRate and NewToken are plain
// fields so tests can pin the randomness; a Synthesizer is not safe for
// concurrent use of a shared Rand.
type Synthesizer struct {
	Rand       *rand.Rand
	SampleRate float64
	NewToken   func() string
}

// NewSynthesizer returns a Synthesizer with a time-seeded random source,
// the default sample rate and UUID transaction tokens.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		SampleRate: DefaultSampleRate,
		NewToken:   uuid.NewString,
	}
}

// Generate samples the base orders at the configured rate, derives one
// provider user per distinct email in the sample, and emits one transaction
// per sampled order. Provider user IDs are a dense 1-based sequence in
// first-seen email order; when sampled orders share an email, the city of
// the last one wins. Sampled orders whose email is somehow absent from the
// identity map are skipped without error.
func (s *Synthesizer) Generate(baseOrders []models.BaseOrder) ([]models.ProviderUser, []models.Transaction) {
	sampled := s.sampleOrders(baseOrders)

	// Deduplicate by email: key order is first occurrence, stored order is
	// last occurrence.
	emailOrder := make([]string, 0, len(sampled))
	lastByEmail := make(map[string]models.BaseOrder, len(sampled))
	for _, order := range sampled {
		if _, seen := lastByEmail[order.Email]; !seen {
			emailOrder = append(emailOrder, order.Email)
		}
		lastByEmail[order.Email] = order
	}

	providerUsers := make([]models.ProviderUser, 0, len(emailOrder))
	idByEmail := make(map[string]int64, len(emailOrder))

	for i, email := range emailOrder {
		order := lastByEmail[email]
		providerUserID := int64(i + 1)
		idByEmail[email] = providerUserID

		providerUsers = append(providerUsers, models.ProviderUser{
			ProviderUserID: providerUserID,
			Email:          email,
			DateOfBirth:    s.randomDateOfBirth(),
			City:           order.City,
			AccountTier:    accountTiers[s.Rand.Intn(len(accountTiers))],
			IsVerifiedUser: s.Rand.Intn(2) == 1,
		})
	}

	transactions := make([]models.Transaction, 0, len(sampled))
	for _, order := range sampled {
		providerUserID, ok := idByEmail[order.Email]
		if !ok {
			continue
		}
		transactions = append(transactions, models.Transaction{
			TransactionID:        s.NewToken(),
			OrderID:              order.OrderID,
			ProviderUserID:       providerUserID,
			TransactionAmount:    order.TotalPrice,
			TransactionTimestamp: order.CreatedAt.Format(time.RFC3339),
			Status:               order.Status,
		})
	}

	return providerUsers, transactions
}

// sampleOrders picks a uniformly random subset of size int(N * rate)
// without replacement.
func (s *Synthesizer) sampleOrders(baseOrders []models.BaseOrder) []models.BaseOrder {
	k := int(float64(len(baseOrders)) * s.SampleRate)
	if k <= 0 {
		return nil
	}

	sampled := make([]models.BaseOrder, 0, k)
	for _, idx := range s.Rand.Perm(len(baseOrders))[:k] {
		sampled = append(sampled, baseOrders[idx])
	}
	return sampled
}

// randomDateOfBirth picks a date uniformly between 1950-01-01 and
// 2005-12-31 inclusive.
func (s *Synthesizer) randomDateOfBirth() civil.Date {
	days := int(dobEnd.Sub(dobStart).Hours() / 24)
	return civil.DateOf(dobStart.AddDate(0, 0, s.Rand.Intn(days+1)))
}
