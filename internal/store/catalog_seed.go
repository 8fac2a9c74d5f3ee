package store

import (
	"fmt"
	"os"

	"boostmarket/internal/models"

	"gopkg.in/yaml.v3"
)

type catalogSeed struct {
	Services []models.ServiceListing `yaml:"services"`
}

// LoadCatalogSeed reads service listings from a YAML file.
func LoadCatalogSeed(path string) ([]models.ServiceListing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	return ParseCatalogSeed(data)
}

func ParseCatalogSeed(data []byte) ([]models.ServiceListing, error) {
	var seed catalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}
	for i := range seed.Services {
		listing := &seed.Services[i]
		if listing.ID == "" {
			return nil, fmt.Errorf("catalog seed entry %d has no id", i)
		}
		if listing.Status == "" {
			listing.Status = models.ListingActive
		}
		if listing.WorkspaceType == "" {
			listing.WorkspaceType = models.WorkspacePersonal
		}
		if listing.CreatedAt.IsZero() {
			listing.CreatedAt = nowUTC()
		}
	}
	return seed.Services, nil
}
