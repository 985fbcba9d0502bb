package jobs

import (
	"context"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

func init() {
	job.Register(&job.Definition{
		Name:        "send-letter",
		Description: "Send a prepared Nexus letter externally",
		Run:         runSendLetter,
	})
}

func runSendLetter(ctx context.Context, params job.Params) (any, error) {
	letterUUID, err := params.String("letter-uuid")
	if err != nil {
		return nil, err
	}

	client, err := newNexusClient(ctx)
	if err != nil {
		return nil, err
	}

	if err := client.SendLetter(ctx, letterUUID); err != nil {
		return nil, err
	}
	return map[string]any{"sent": true}, nil
}
