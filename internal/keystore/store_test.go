package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBag struct {
	data map[string]string
}

func newMemBag() *memBag {
	return &memBag{data: make(map[string]string)}
}

func (m *memBag) Get(key string) (string, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *memBag) Set(key, value string) error {
	m.data[key] = value
	return nil
}

func sampleContainer(username string) *Container {
	return &Container{
		Key:         "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
		AuthExpires: "2099-01-01T00:00:00Z",
		Username:    username,
		ClientName:  "Test Browser",
	}
}

func TestStoreTier1RoundTrip(t *testing.T) {
	bag := newMemBag()
	store := New(bag)
	c := sampleContainer("alice")

	require.NoError(t, store.Save(TierLow, c))

	loaded, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, c.Key, loaded.Key)
	assert.Equal(t, c.Username, loaded.Username)
	assert.Equal(t, c.ClientName, loaded.ClientName)
	assert.Equal(t, c.AuthExpires, loaded.AuthExpires)
}

func TestStoreTier2RoundTrip(t *testing.T) {
	bag := newMemBag()
	store := New(bag)
	c := sampleContainer("bob")

	require.NoError(t, store.Save(TierMedium, c))

	raw, _ := bag.Get(keyPrefix + "bob")
	assert.NotContains(t, raw, "KeyContainerClass", "tier 2 payload must be sealed, not plain XML")

	loaded, err := store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, c.Key, loaded.Key)
}

func TestStoreUnsetAndHighTiersDoNotPersist(t *testing.T) {
	store := New(newMemBag())
	c := sampleContainer("carol")

	assert.ErrorIs(t, store.Save(TierUnset, c), ErrNotPersisted)
	assert.ErrorIs(t, store.Save(TierHigh, c), ErrNotPersisted)
}

func TestStoreLoadMissingReturnsNoStoredKey(t *testing.T) {
	store := New(newMemBag())
	_, err := store.Load("nobody")
	assert.ErrorIs(t, err, ErrNoStoredKey)
}

func TestStoreLoadCorruptPayloadReturnsNoStoredKey(t *testing.T) {
	bag := newMemBag()
	bag.data[keyPrefix+"dave"] = "not-valid-base64!!!"
	store := New(bag)

	_, err := store.Load("dave")
	assert.ErrorIs(t, err, ErrNoStoredKey)
}

func TestStoreLoadExploitMarkerReturnsNoStoredKey(t *testing.T) {
	bag := newMemBag()
	store := New(bag)
	c := sampleContainer("eve")
	c.Key = ExploitMarkerKey

	require.NoError(t, store.Save(TierLow, c))

	_, err := store.Load("eve")
	assert.ErrorIs(t, err, ErrNoStoredKey)
}
