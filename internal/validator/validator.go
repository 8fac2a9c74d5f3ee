package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"boostmarket/internal/models"
)

var (
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidSlug     = errors.New("invalid identifier")
	ErrInvalidPrices   = errors.New("invalid prices")
	ErrInvalidOwner    = errors.New("invalid workspace owner")
	ErrInvalidEvidence = errors.New("invalid evidence")
	ErrInvalidReason   = errors.New("rejection reason is required")
)

const (
	maxTitleLength       = 120
	maxDescriptionLength = 4000
	maxNotesLength       = 2000
	// MaxEvidenceSize is the largest evidence upload accepted, in bytes.
	MaxEvidenceSize = 10 << 20
)

var slugRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,63}$`)

// ValidateSlug checks game, service type and realm identifiers.
func ValidateSlug(value string) error {
	if !slugRegex.MatchString(value) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, value)
	}
	return nil
}

func ValidateListing(listing models.ServiceListing) error {
	title := strings.TrimSpace(listing.Title)
	if title == "" || len(title) > maxTitleLength {
		return ErrInvalidTitle
	}
	if len(listing.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description too long", ErrInvalidTitle)
	}
	if err := ValidateSlug(listing.GameID); err != nil {
		return err
	}
	if err := ValidateSlug(listing.ServiceTypeID); err != nil {
		return err
	}
	p := listing.Prices
	if p.Gold < 0 || p.USD < 0 || p.Toman < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidPrices)
	}
	if p.Gold == 0 && p.USD == 0 && p.Toman == 0 {
		return fmt.Errorf("%w: at least one currency must be offered", ErrInvalidPrices)
	}
	switch listing.WorkspaceType {
	case models.WorkspacePersonal:
	case models.WorkspaceTeam:
		if listing.WorkspaceOwnerID == "" {
			return ErrInvalidOwner
		}
	default:
		return fmt.Errorf("%w: unknown workspace type %q", ErrInvalidOwner, listing.WorkspaceType)
	}
	return nil
}

func ValidateEvidence(file models.EvidenceFile, notes string) error {
	if strings.TrimSpace(file.Name) == "" || file.Ref == "" {
		return fmt.Errorf("%w: file is required", ErrInvalidEvidence)
	}
	if file.Size <= 0 || file.Size > MaxEvidenceSize {
		return fmt.Errorf("%w: size %d", ErrInvalidEvidence, file.Size)
	}
	if len(notes) > maxNotesLength {
		return fmt.Errorf("%w: notes too long", ErrInvalidEvidence)
	}
	return nil
}

func ValidateRejection(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrInvalidReason
	}
	return nil
}
