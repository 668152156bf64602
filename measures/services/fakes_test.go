package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"meter-reading-backend/db/models"
	"meter-reading-backend/measures/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepository struct {
	mu        sync.Mutex
	measures  map[uuid.UUID]*models.Measure
	createErr error
	// confirmRace makes Confirm behave as if another request confirmed first.
	confirmRace bool
	creates     int
	confirms    int
	lookups     int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{measures: make(map[uuid.UUID]*models.Measure)}
}

func (r *fakeRepository) FindExisting(_ context.Context, customerCode string, measureType models.MeasureType, month string) (*models.Measure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.measures {
		if m.CustomerCode == customerCode && m.MeasureType == measureType && m.MeasureMonth == month {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepository) Create(_ context.Context, measure *models.Measure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.creates++
	copied := *measure
	r.measures[measure.MeasureUUID] = &copied
	return nil
}

func (r *fakeRepository) FindByUUID(_ context.Context, measureUUID uuid.UUID) (*models.Measure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	m, ok := r.measures[measureUUID]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (r *fakeRepository) Confirm(_ context.Context, measureUUID uuid.UUID, value decimal.Decimal, confirmedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.measures[measureUUID]
	if !ok || m.HasConfirmed || r.confirmRace {
		return repositories.ErrAlreadyConfirmed
	}
	r.confirms++
	m.MeasureValue = decimal.NewNullDecimal(value)
	m.HasConfirmed = true
	m.ConfirmedAt = &confirmedAt
	return nil
}

func (r *fakeRepository) ListByCustomer(_ context.Context, customerCode string, measureType *models.MeasureType) ([]models.Measure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Measure
	for _, m := range r.measures {
		if m.CustomerCode != customerCode {
			continue
		}
		if measureType != nil && m.MeasureType != *measureType {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *fakeRepository) ImageKeysInUse(_ context.Context, keys []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inUse := make(map[string]bool)
	for _, m := range r.measures {
		for _, key := range keys {
			if m.ImageKey == key {
				inUse[key] = true
			}
		}
	}
	return inUse, nil
}

type fakeExtractor struct {
	value string
	err   error
	calls int
}

func (e *fakeExtractor) ExtractReading(_ context.Context, _ []byte, _ string) (string, error) {
	e.calls++
	return e.value, e.err
}

type fakeImageStore struct {
	uploads map[string][]byte
	err     error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{uploads: make(map[string][]byte)}
}

func (s *fakeImageStore) Upload(_ context.Context, data []byte, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploads[key] = data
	return "https://images.example.com/" + key, nil
}

type fakeReaper struct {
	reaped []string
}

func (r *fakeReaper) Reap(_ context.Context, key string) error {
	r.reaped = append(r.reaped, key)
	return nil
}

type fakeListCache struct {
	entries     map[string][]byte
	generations map[string]int
	invalidated []string
	// beforeSet runs just before an entry is written, standing in for a
	// request that commits between the read and the cache write.
	beforeSet func()
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{entries: make(map[string][]byte), generations: make(map[string]int)}
}

func fakeCacheKey(customerCode, generation, filter string) string {
	return customerCode + ":" + generation + ":" + filter
}

// currentKey is the key a List call would read right now.
func (c *fakeListCache) currentKey(customerCode, filter string) string {
	return fakeCacheKey(customerCode, strconv.Itoa(c.generations[customerCode]), filter)
}

func (c *fakeListCache) Generation(_ context.Context, customerCode string) (string, bool) {
	return strconv.Itoa(c.generations[customerCode]), true
}

func (c *fakeListCache) Get(_ context.Context, customerCode, generation, filter string) ([]byte, bool) {
	payload, ok := c.entries[fakeCacheKey(customerCode, generation, filter)]
	return payload, ok
}

func (c *fakeListCache) Set(_ context.Context, customerCode, generation, filter string, payload []byte) {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	c.entries[fakeCacheKey(customerCode, generation, filter)] = payload
}

func (c *fakeListCache) Invalidate(_ context.Context, customerCode string) {
	c.invalidated = append(c.invalidated, customerCode)
	c.generations[customerCode]++
}

var errBoom = errors.New("boom")
