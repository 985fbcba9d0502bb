package jobs

import (
	"context"
	"fmt"

	"github.com/nyborg-rpa/rpa-core/internal/job"
	"github.com/nyborg-rpa/rpa-core/pkg/cpr"
)

func init() {
	job.Register(&job.Definition{
		Name:        "find-employee-email",
		Description: "Look up an employee's email address by CPR number",
		Run:         runFindEmployeeEmail,
	})
}

func runFindEmployeeEmail(ctx context.Context, params job.Params) (any, error) {
	number, err := params.String("cpr")
	if err != nil {
		return nil, err
	}
	number, err = cpr.Normalize(number)
	if err != nil {
		return nil, err
	}

	client, err := newSofdClient()
	if err != nil {
		return nil, err
	}

	person, err := client.PersonByCPR(ctx, number)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, fmt.Errorf("no person found for cpr")
	}

	email, ok := person.Email()
	if !ok {
		return nil, nil
	}
	return email, nil
}
