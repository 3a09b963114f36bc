package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingTables(t *testing.T) {
	setTestConfig(t)
	s := NewHashingService(nil)

	tables := s.Tables()
	require.Len(t, tables, 4)

	assert.Equal(t, "merchant-proj", tables[0].ProjectID)
	assert.Equal(t, "users", tables[0].Table)
	assert.Equal(t, "users_inference", tables[1].Table)
	assert.Equal(t, "provider-proj", tables[2].ProjectID)
	assert.Equal(t, "provider_users", tables[2].Table)
	assert.Equal(t, "provider_users_inference", tables[3].Table)
}

func TestAddColumnQuery(t *testing.T) {
	query := AddColumnQuery("p.d.users")
	assert.Contains(t, query, "ALTER TABLE `p.d.users`")
	assert.Contains(t, query, "ADD COLUMN IF NOT EXISTS hashed_email STRING")
}

func TestPopulateHashQuery(t *testing.T) {
	query := PopulateHashQuery("p.d.users")
	assert.Contains(t, query, "UPDATE `p.d.users`")
	assert.Contains(t, query, "SET hashed_email = TO_BASE64(SHA256(CONCAT(email, @salt)))")
	assert.Contains(t, query, "WHERE hashed_email IS NULL")
}

func TestVerifyHashQuery(t *testing.T) {
	query := VerifyHashQuery("p.d.users")
	assert.Contains(t, query, "COUNT(*) as total_rows")
	assert.Contains(t, query, "COUNT(hashed_email) as hashed_rows")
	assert.Contains(t, query, "COUNT(DISTINCT hashed_email) as unique_hashes")
	assert.Contains(t, query, "FROM `p.d.users`")
}
