// Package relationship classifies sender domains by commercial direction:
// who pays whom. Results gate gem detection and cap opportunity scores.
package relationship

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/metadata"
)

// Known-entity categories and their relationship mapping.
const (
	catInfrastructure = "infrastructure"
	catInstitutional  = "institutional"
	catMarketing      = "marketing_platforms"
	catSuppressed     = "user_suppressed"
)

var categoryRelationship = map[string]domain.RelationshipType{
	catInfrastructure: domain.RelMyInfrastructure,
	catInstitutional:  domain.RelInstitutional,
	catMarketing:      domain.RelSellingToMe,
	catSuppressed:     domain.RelUnknown,
}

// LoadKnownEntities reads the curated domain lists. A missing file is not
// an error; detection just runs without the lists.
func LoadKnownEntities(path string) (*domain.KnownEntities, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &domain.KnownEntities{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read known entities %s: %w", path, err)
	}
	var ke domain.KnownEntities
	if err := yaml.Unmarshal(data, &ke); err != nil {
		return nil, fmt.Errorf("parse known entities %s: %w", path, err)
	}
	return &ke, nil
}

// MatchKnownEntity returns the category containing the domain, matching
// on both the literal host and its collapsed organizational root.
func MatchKnownEntity(senderDomain string, ke *domain.KnownEntities) (string, bool) {
	if senderDomain == "" || ke == nil {
		return "", false
	}
	collapsed := metadata.CollapseDomain(senderDomain)
	for category, list := range map[string][]string{
		catInfrastructure: ke.Infrastructure,
		catInstitutional:  ke.Institutional,
		catMarketing:      ke.MarketingPlatforms,
		catSuppressed:     ke.UserSuppressed,
	} {
		for _, d := range list {
			if d == senderDomain || d == collapsed {
				return category, true
			}
		}
	}
	return "", false
}
