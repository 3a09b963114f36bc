package generator

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynthesizer(seed int64) *Synthesizer {
	counter := 0
	return &Synthesizer{
		Rand:       rand.New(rand.NewSource(seed)),
		SampleRate: DefaultSampleRate,
		NewToken: func() string {
			counter++
			return fmt.Sprintf("txn-%04d", counter)
		},
	}
}

func makeOrders(n int) []models.BaseOrder {
	orders := make([]models.BaseOrder, 0, n)
	for i := 0; i < n; i++ {
		orders = append(orders, models.BaseOrder{
			OrderID:    int64(i + 1),
			UserID:     int64(i%7 + 1),
			Email:      fmt.Sprintf("user%d@example.com", i%7),
			City:       fmt.Sprintf("City %d", i),
			Status:     "Complete",
			TotalPrice: float64(i) * 9.99,
			CreatedAt:  time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		})
	}
	return orders
}

func ordersByID(orders []models.BaseOrder) map[int64]models.BaseOrder {
	byID := make(map[int64]models.BaseOrder, len(orders))
	for _, o := range orders {
		byID[o.OrderID] = o
	}
	return byID
}

func TestGenerateEmptyInput(t *testing.T) {
	s := newTestSynthesizer(1)

	users, transactions := s.Generate(nil)
	assert.Empty(t, users)
	assert.Empty(t, transactions)

	users, transactions = s.Generate([]models.BaseOrder{})
	assert.Empty(t, users)
	assert.Empty(t, transactions)
}

func TestGenerateSampleSize(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 11, 100} {
		s := newTestSynthesizer(42)
		orders := makeOrders(n)
		// distinct emails so one transaction per sampled order maps 1:1
		for i := range orders {
			orders[i].Email = fmt.Sprintf("unique%d@example.com", i)
		}

		_, transactions := s.Generate(orders)
		assert.Len(t, transactions, n/2, "n=%d", n)
	}
}

func TestGenerateIdentityUniquenessAndDenseIDs(t *testing.T) {
	s := newTestSynthesizer(7)
	orders := makeOrders(40)

	users, _ := s.Generate(orders)
	require.NotEmpty(t, users)

	seenEmails := make(map[string]bool)
	seenIDs := make(map[int64]bool)
	for _, u := range users {
		assert.False(t, seenEmails[u.Email], "duplicate email %s", u.Email)
		seenEmails[u.Email] = true
		seenIDs[u.ProviderUserID] = true
	}

	// IDs are exactly {1..M}, assigned in output order
	for i, u := range users {
		assert.Equal(t, int64(i+1), u.ProviderUserID)
	}
	assert.Len(t, seenIDs, len(users))
}

func TestGenerateReferentialIntegrity(t *testing.T) {
	s := newTestSynthesizer(99)
	orders := makeOrders(30)
	byID := ordersByID(orders)

	users, transactions := s.Generate(orders)
	require.NotEmpty(t, transactions)

	emailByUserID := make(map[int64]string, len(users))
	for _, u := range users {
		emailByUserID[u.ProviderUserID] = u.Email
	}

	for _, txn := range transactions {
		source, ok := byID[txn.OrderID]
		require.True(t, ok, "transaction references unknown order %d", txn.OrderID)

		email, ok := emailByUserID[txn.ProviderUserID]
		require.True(t, ok, "transaction references unknown provider user %d", txn.ProviderUserID)
		assert.Equal(t, source.Email, email)
	}
}

func TestGenerateCopiesOrderFields(t *testing.T) {
	s := newTestSynthesizer(5)
	orders := makeOrders(20)
	byID := ordersByID(orders)

	_, transactions := s.Generate(orders)
	require.NotEmpty(t, transactions)

	for _, txn := range transactions {
		source := byID[txn.OrderID]
		assert.Equal(t, source.TotalPrice, txn.TransactionAmount)
		assert.Equal(t, source.Status, txn.Status)
		assert.Equal(t, source.CreatedAt.Format(time.RFC3339), txn.TransactionTimestamp)
	}
}

func TestGenerateUniqueTransactionTokens(t *testing.T) {
	s := newTestSynthesizer(11)
	orders := makeOrders(50)

	_, transactions := s.Generate(orders)
	require.NotEmpty(t, transactions)

	seen := make(map[string]bool)
	for _, txn := range transactions {
		assert.False(t, seen[txn.TransactionID])
		seen[txn.TransactionID] = true
	}
}

// Duplicate emails in the sample: the provider user keeps the city of the
// last sampled order for that email, while IDs follow first-seen order.
func TestGenerateDuplicateEmailCityLastWriteWins(t *testing.T) {
	s := newTestSynthesizer(3)
	s.SampleRate = 1.0

	orders := []models.BaseOrder{
		{OrderID: 1, Email: "a@x.com", City: "NY", Status: "Complete", TotalPrice: 10, CreatedAt: time.Now().UTC()},
		{OrderID: 2, Email: "a@x.com", City: "Boston", Status: "Complete", TotalPrice: 20, CreatedAt: time.Now().UTC()},
		{OrderID: 3, Email: "b@x.com", City: "LA", Status: "Complete", TotalPrice: 5, CreatedAt: time.Now().UTC()},
	}
	byID := ordersByID(orders)

	users, transactions := s.Generate(orders)
	require.Len(t, users, 2)
	require.Len(t, transactions, 3)

	// Recover the sample iteration order from the transaction sequence and
	// derive, per email, the first and last sampled order.
	firstOrder := make(map[string]models.BaseOrder)
	lastOrder := make(map[string]models.BaseOrder)
	var emailFirstSeen []string
	for _, txn := range transactions {
		source := byID[txn.OrderID]
		if _, ok := firstOrder[source.Email]; !ok {
			firstOrder[source.Email] = source
			emailFirstSeen = append(emailFirstSeen, source.Email)
		}
		lastOrder[source.Email] = source
	}

	for i, u := range users {
		assert.Equal(t, emailFirstSeen[i], u.Email, "IDs must follow first-seen email order")
		assert.Equal(t, lastOrder[u.Email].City, u.City, "city must come from the last sampled order")
	}
}

func TestGenerateConcreteScenario(t *testing.T) {
	t1 := time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)
	orders := []models.BaseOrder{
		{OrderID: 1, Email: "a@x.com", City: "NY", Status: "Complete", TotalPrice: 10.0, CreatedAt: t1},
		{OrderID: 2, Email: "a@x.com", City: "NY", Status: "Complete", TotalPrice: 20.0, CreatedAt: t1.Add(time.Hour)},
		{OrderID: 3, Email: "b@x.com", City: "LA", Status: "Complete", TotalPrice: 5.0, CreatedAt: t1.Add(2 * time.Hour)},
		{OrderID: 4, Email: "c@x.com", City: "SF", Status: "Complete", TotalPrice: 7.0, CreatedAt: t1.Add(3 * time.Hour)},
	}

	for seed := int64(0); seed < 20; seed++ {
		s := newTestSynthesizer(seed)
		users, transactions := s.Generate(orders)

		require.Len(t, transactions, 2, "seed=%d", seed)

		distinct := make(map[string]bool)
		for _, txn := range transactions {
			distinct[orders[txn.OrderID-1].Email] = true
		}
		require.Len(t, users, len(distinct), "seed=%d", seed)

		emailByUserID := make(map[int64]string)
		for i, u := range users {
			assert.Equal(t, int64(i+1), u.ProviderUserID, "seed=%d", seed)
			emailByUserID[u.ProviderUserID] = u.Email
		}
		for _, txn := range transactions {
			assert.Equal(t, orders[txn.OrderID-1].Email, emailByUserID[txn.ProviderUserID], "seed=%d", seed)
		}
	}
}

func TestRandomDateOfBirthRange(t *testing.T) {
	s := newTestSynthesizer(13)

	min := dobStart
	max := dobEnd
	for i := 0; i < 1000; i++ {
		dob := s.randomDateOfBirth()
		d := time.Date(dob.Year, dob.Month, dob.Day, 0, 0, 0, 0, time.UTC)
		assert.False(t, d.Before(min))
		assert.False(t, d.After(max))
	}
}

func TestGenerateAccountTierValues(t *testing.T) {
	s := newTestSynthesizer(17)
	orders := makeOrders(60)

	users, _ := s.Generate(orders)
	require.NotEmpty(t, users)

	for _, u := range users {
		assert.Contains(t, accountTiers, u.AccountTier)
	}
}
