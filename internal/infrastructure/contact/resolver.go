// Package contact resolves patient phone numbers for notifications.
package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
)

// ErrInvalidPhone is returned when a number cannot be parsed into a dialable E.164 number
var ErrInvalidPhone = errors.New("invalid phone number")

// Resolver reads the patient phone stored on a case and normalizes it to E.164
type Resolver struct {
	cases         port.CaseRepository
	defaultRegion string
	logger        *zap.Logger
}

// NewResolver creates a resolver. defaultRegion (ISO 3166 alpha-2, e.g. "US")
// is used for numbers written without a country code.
func NewResolver(cases port.CaseRepository, defaultRegion string, logger *zap.Logger) *Resolver {
	return &Resolver{
		cases:         cases,
		defaultRegion: strings.ToUpper(defaultRegion),
		logger:        logger,
	}
}

// ResolvePhone returns the case patient's phone in E.164, or "" when none is usable
func (r *Resolver) ResolvePhone(ctx context.Context, caseID string) (string, error) {
	c, err := r.cases.GetByID(ctx, caseID)
	if err != nil {
		return "", err
	}

	raw := c.Contact().Phone
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	phone, err := r.NormalizePhone(raw)
	if err != nil {
		r.logger.Warn("Stored patient phone is not dialable",
			zap.String("case_id", caseID),
			zap.Error(err))
		return "", nil
	}
	return phone, nil
}

// NormalizePhone parses raw against the default region and formats it as E.164
func (r *Resolver) NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, r.defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhone, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

var _ port.ContactResolver = (*Resolver)(nil)
