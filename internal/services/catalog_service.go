package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"boostmarket/internal/models"
	"boostmarket/internal/store"
	"boostmarket/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CatalogService struct {
	// mu serializes writes to the listing collection.
	mu       sync.Mutex
	listings CatalogStore
	audit    AuditStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewCatalogService(listings CatalogStore, audit AuditStore, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		listings: listings,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateListingRequest struct {
	CreatedBy        string
	GameID           string
	ServiceTypeID    string
	Title            string
	Description      string
	Prices           models.Prices
	WorkspaceType    models.WorkspaceType
	WorkspaceOwnerID string
}

func (s *CatalogService) Create(ctx context.Context, req CreateListingRequest) (models.ServiceListing, error) {
	if strings.TrimSpace(req.CreatedBy) == "" {
		return models.ServiceListing{}, fmt.Errorf("%w: creator is required", ErrValidationFailed)
	}
	workspace := req.WorkspaceType
	if workspace == "" {
		workspace = models.WorkspacePersonal
	}
	owner := req.WorkspaceOwnerID
	if workspace == models.WorkspacePersonal {
		owner = ""
	}
	listing := models.ServiceListing{
		ID:               uuid.NewString(),
		GameID:           strings.TrimSpace(req.GameID),
		ServiceTypeID:    strings.TrimSpace(req.ServiceTypeID),
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Prices:           req.Prices,
		WorkspaceType:    workspace,
		WorkspaceOwnerID: owner,
		CreatedBy:        req.CreatedBy,
		Status:           models.ListingActive,
		CreatedAt:        s.now(),
	}
	if err := validator.ValidateListing(listing); err != nil {
		return models.ServiceListing{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	s.mu.Lock()
	err := s.listings.Save(ctx, listing)
	s.mu.Unlock()
	if err != nil {
		return models.ServiceListing{}, err
	}
	audit(ctx, s.audit, s.logger, req.CreatedBy, "create_listing", "service", listing.ID, listing.Title)
	return listing, nil
}

func (s *CatalogService) Get(ctx context.Context, serviceID string) (models.ServiceListing, error) {
	return s.listings.GetByID(ctx, serviceID)
}

// GetServiceListing is the lookup used when placing an order.
func (s *CatalogService) GetServiceListing(ctx context.Context, serviceID string) (models.ServiceListing, error) {
	return s.Get(ctx, serviceID)
}

type SetStatusRequest struct {
	ServiceID string
	ActorID   string
	Status    models.ListingStatus
	AsAdmin   bool
}

// SetStatus is limited to the creator, the workspace owner and admins.
func (s *CatalogService) SetStatus(ctx context.Context, req SetStatusRequest) (models.ServiceListing, error) {
	switch req.Status {
	case models.ListingActive, models.ListingInactive, models.ListingArchived:
	default:
		return models.ServiceListing{}, fmt.Errorf("%w: unknown listing status %q", ErrValidationFailed, req.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, err := s.listings.GetByID(ctx, req.ServiceID)
	if err != nil {
		return models.ServiceListing{}, err
	}
	if !req.AsAdmin && req.ActorID != listing.CreatedBy && req.ActorID != listing.WorkspaceOwnerID {
		return models.ServiceListing{}, ErrForbidden
	}
	if listing.Status == req.Status {
		return listing, nil
	}
	listing.Status = req.Status
	if err := s.listings.Save(ctx, listing); err != nil {
		return models.ServiceListing{}, err
	}
	audit(ctx, s.audit, s.logger, req.ActorID, "set_listing_status", "service", listing.ID, string(req.Status))
	return listing, nil
}

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

type SearchFilter struct {
	GameID        string
	ServiceTypeID string
	WorkspaceType models.WorkspaceType
	CreatedBy     string
	// Currency restricts results to listings offered in it and is the currency prices are compared in.
	Currency models.Currency
	MinPrice int64
	MaxPrice int64
	Query    string
	// Status defaults to active.
	Status models.ListingStatus
	Sort   string
	Limit  int
	Offset int
}

func (s *CatalogService) Search(ctx context.Context, filter SearchFilter) ([]models.ServiceListing, error) {
	if filter.Currency != "" && !filter.Currency.Valid() {
		return nil, fmt.Errorf("%w: unknown currency %q", ErrValidationFailed, filter.Currency)
	}
	if (filter.MinPrice > 0 || filter.MaxPrice > 0) && filter.Currency == "" {
		return nil, fmt.Errorf("%w: price range needs a currency", ErrValidationFailed)
	}
	switch filter.Sort {
	case "", SortNewest:
	case SortPriceAsc, SortPriceDesc:
		if filter.Currency == "" {
			return nil, fmt.Errorf("%w: price sort needs a currency", ErrValidationFailed)
		}
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", ErrValidationFailed, filter.Sort)
	}
	status := filter.Status
	if status == "" {
		status = models.ListingActive
	}
	all, err := s.listings.List(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.ServiceListing, 0, len(all))
	for _, listing := range all {
		if listing.Status != status {
			continue
		}
		if filter.GameID != "" && listing.GameID != filter.GameID {
			continue
		}
		if filter.ServiceTypeID != "" && listing.ServiceTypeID != filter.ServiceTypeID {
			continue
		}
		if filter.WorkspaceType != "" && listing.WorkspaceType != filter.WorkspaceType {
			continue
		}
		if filter.CreatedBy != "" && listing.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Currency != "" {
			price := listing.Prices.In(filter.Currency)
			if price <= 0 {
				continue
			}
			if filter.MinPrice > 0 && price < filter.MinPrice {
				continue
			}
			if filter.MaxPrice > 0 && price > filter.MaxPrice {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(listing.Title), query) &&
			!strings.Contains(strings.ToLower(listing.Description), query) {
			continue
		}
		out = append(out, listing)
	}

	switch filter.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Prices.In(filter.Currency) < out[j].Prices.In(filter.Currency)
		})
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Prices.In(filter.Currency) > out[j].Prices.In(filter.Currency)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return Paginate(out, filter.Limit, filter.Offset), nil
}

// Paginate applies limit and offset; a non-positive limit means no limit.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Seed upserts the listings found in a YAML seed file.
func (s *CatalogService) Seed(ctx context.Context, path string) (int, error) {
	listings, err := store.LoadCatalogSeed(path)
	if err != nil {
		return 0, err
	}
	for _, listing := range listings {
		if err := validator.ValidateListing(listing); err != nil {
			return 0, fmt.Errorf("%w: seed listing %s: %v", ErrValidationFailed, listing.ID, err)
		}
	}
	s.mu.Lock()
	err = s.listings.SaveAll(ctx, listings)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.logger.Info("catalog seeded", zap.String("path", path), zap.Int("count", len(listings)))
	return len(listings), nil
}
