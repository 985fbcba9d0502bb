package autreg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nyborg-rpa/rpa-core/pkg/cpr"
)

// Status is the verdict of an authorization check.
type Status string

const (
	// StatusValid means a matching record exists and the registry marks it valid.
	StatusValid Status = "Gyldig"
	// StatusInvalid means a matching record exists but it is not valid.
	StatusInvalid Status = "Ugyldig"
	// StatusManual means no record could be matched with confidence and the
	// check must be done by hand.
	StatusManual Status = "Manuel"
)

// Verify checks whether a practitioner holds a valid authorization. The name
// is the full name as registered; cprNumber is the practitioner's civil
// registration number, with or without the dash. The search runs on first
// given name plus last name, and a result only counts as a match when either
// the full name matches exactly or last name, first given name and birthdate
// all match.
func (c *Client) Verify(ctx context.Context, name, cprNumber string) (Status, error) {
	born, err := cpr.Birthdate(cprNumber)
	if err != nil {
		return "", err
	}

	parts := strings.Fields(name)
	if len(parts) < 2 {
		return "", fmt.Errorf("name %q has no last name", name)
	}
	firstName, lastName := parts[0], parts[len(parts)-1]

	ids, err := c.Search(ctx, firstName+" "+lastName, born)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return StatusManual, nil
	}

	for _, id := range ids {
		auth, err := c.Authorization(ctx, id)
		if err != nil {
			return "", err
		}
		if !matchesPerson(auth, name, firstName, lastName, born) {
			continue
		}
		if auth.Valid() {
			return StatusValid, nil
		}
		return StatusInvalid, nil
	}

	return StatusManual, nil
}

func matchesPerson(auth *Authorization, fullName, firstName, lastName string, born time.Time) bool {
	if strings.EqualFold(auth.FullName(), fullName) {
		return true
	}

	authFirst := strings.Fields(auth.FirstNames)
	return len(authFirst) > 0 &&
		strings.EqualFold(authFirst[0], firstName) &&
		strings.EqualFold(auth.LastName, lastName) &&
		auth.Birthdate.Equal(born)
}
