package store

import (
	"context"
	"errors"

	"boostmarket/internal/models"
)

var ErrServiceNotFound = errors.New("service not found")

type CatalogStore struct {
	kv KV
}

func NewCatalogStore(kv KV) *CatalogStore {
	return &CatalogStore{kv: kv}
}

func (s *CatalogStore) List(ctx context.Context) ([]models.ServiceListing, error) {
	var listings []models.ServiceListing
	if _, err := getJSON(ctx, s.kv, servicesKey, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *CatalogStore) GetByID(ctx context.Context, serviceID string) (models.ServiceListing, error) {
	listings, err := s.List(ctx)
	if err != nil {
		return models.ServiceListing{}, err
	}
	for _, listing := range listings {
		if listing.ID == serviceID {
			return listing, nil
		}
	}
	return models.ServiceListing{}, ErrServiceNotFound
}

func (s *CatalogStore) Save(ctx context.Context, listing models.ServiceListing) error {
	return s.SaveAll(ctx, []models.ServiceListing{listing})
}

// SaveAll upserts listings by id, keeping the existing order of the collection.
func (s *CatalogStore) SaveAll(ctx context.Context, batch []models.ServiceListing) error {
	listings, err := s.List(ctx)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(listings))
	for i, listing := range listings {
		index[listing.ID] = i
	}
	for _, listing := range batch {
		if i, ok := index[listing.ID]; ok {
			listings[i] = listing
			continue
		}
		index[listing.ID] = len(listings)
		listings = append(listings, listing)
	}
	return setJSON(ctx, s.kv, servicesKey, listings)
}
