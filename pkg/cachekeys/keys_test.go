package cachekeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshKey(t *testing.T) {
	assert.Equal(t, "profile:t1:u1", RefreshKey("profile", "t1", "u1"))
	assert.Equal(t, "billing-invoices:t1:u1", RefreshKey("billing-invoices", "t1", "u1"))
	assert.NotEqual(t, RefreshKey("profile", "t1", "u1"), RefreshKey("billing-subscription", "t1", "u1"))
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "account_cache:billing-subscription:t1:u1", RecordKey("billing-subscription", "t1", "u1"))
}

func TestRefreshSubject(t *testing.T) {
	assert.Equal(t, "account.cache.refresh.profile", RefreshSubject("account.cache.refresh", "profile"))
}

func TestKeysEscapeSeparator(t *testing.T) {
	assert.NotEqual(t, RecordKey("profile", "a:b", "c"), RecordKey("profile", "a", "b:c"))
	assert.NotEqual(t, RefreshKey("profile", "a:b", "c"), RefreshKey("profile", "a", "b:c"))
	assert.NotEqual(t, RecordKey("profile", "a%3Ab", "c"), RecordKey("profile", "a:b", "c"))
	assert.Equal(t, "account_cache:profile:a%3Ab:c", RecordKey("profile", "a:b", "c"))
}
