package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/store"
)

const needsTuningThreshold = 0.2

// Overrides manages user corrections of classifications.
type Overrides struct {
	classify *store.ClassifyRepo
	metadata *store.MetadataRepo
}

// NewOverrides creates the override service.
func NewOverrides(classify *store.ClassifyRepo, metadata *store.MetadataRepo) *Overrides {
	return &Overrides{classify: classify, metadata: metadata}
}

// Add records one correction. A message id implies message scope, a bare
// sender domain implies sender scope. The current classification value is
// captured as the original so retrain examples can cite it.
func (o *Overrides) Add(ctx context.Context, messageID, senderDomain, field, corrected string) (*domain.Override, error) {
	if messageID == "" && senderDomain == "" {
		return nil, fmt.Errorf("override needs a message id or a sender domain")
	}
	if !validField(field) {
		return nil, fmt.Errorf("unknown classification field %q", field)
	}

	ov := &domain.Override{
		MessageID:      messageID,
		SenderDomain:   senderDomain,
		FieldName:      field,
		CorrectedValue: corrected,
		Scope:          domain.ScopeSender,
		CreatedAt:      time.Now().UTC(),
	}
	if messageID != "" {
		ov.Scope = domain.ScopeMessage
		if senderDomain == "" {
			if md, err := o.metadata.Get(ctx, messageID); err == nil {
				ov.SenderDomain = md.SenderDomain
			}
		}
	}

	ov.OriginalValue = o.currentValue(ctx, ov)

	if err := o.classify.InsertOverride(ctx, ov); err != nil {
		return nil, err
	}
	return ov, nil
}

// currentValue reads the field's present classification, by message when
// message-scoped, else from the domain's newest classification.
func (o *Overrides) currentValue(ctx context.Context, ov *domain.Override) string {
	if ov.MessageID != "" {
		c, err := o.classify.Get(ctx, ov.MessageID)
		if err == nil {
			return FieldValue(c, ov.FieldName)
		}
		return ""
	}
	cs, err := o.classify.ForDomain(ctx, ov.SenderDomain)
	if err != nil || len(cs) == 0 {
		return ""
	}
	return FieldValue(&cs[0], ov.FieldName)
}

// List returns every override, newest first.
func (o *Overrides) List(ctx context.Context) ([]domain.Override, error) {
	return o.classify.ListOverrides(ctx)
}

// Delete removes an override by id.
func (o *Overrides) Delete(ctx context.Context, id int64) error {
	err := o.classify.DeleteOverride(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("override %d not found", id)
	}
	return err
}

// Stats computes per-field override pressure. A field corrected on more
// than 20% of classifications is flagged as needing prompt tuning.
func (o *Overrides) Stats(ctx context.Context) ([]domain.OverrideStats, error) {
	counts, err := o.classify.OverrideCountsByField(ctx)
	if err != nil {
		return nil, err
	}
	total, err := o.classify.CountClassifications(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.OverrideStats
	for _, field := range classificationFields {
		n, ok := counts[field]
		if !ok {
			continue
		}
		st := domain.OverrideStats{
			FieldName:            field,
			TotalOverrides:       n,
			TotalClassifications: total,
		}
		if total > 0 {
			st.OverrideRate = float64(n) / float64(total)
			st.NeedsTuning = st.OverrideRate > needsTuningThreshold
		}
		out = append(out, st)
	}
	return out, nil
}

func validField(field string) bool {
	for _, f := range classificationFields {
		if f == field {
			return true
		}
	}
	// Aliases accepted from the original schema's naming.
	switch field {
	case "company_size_estimate", "marketing_sophistication", "pain_points_addressed":
		return true
	}
	return false
}
