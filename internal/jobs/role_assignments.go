package jobs

import (
	"context"
	"fmt"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

func init() {
	job.Register(&job.Definition{
		Name:        "role-assignments",
		Description: "List who holds a role in OS2rollekatalog",
		Run:         runRoleAssignments,
	})
}

func runRoleAssignments(ctx context.Context, params job.Params) (any, error) {
	roleName, err := params.String("role")
	if err != nil {
		return nil, err
	}

	client, err := newRollekatalogClient()
	if err != nil {
		return nil, err
	}

	details, err := client.RoleDetailsByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, fmt.Errorf("no role named %q", roleName)
	}

	return details, nil
}
