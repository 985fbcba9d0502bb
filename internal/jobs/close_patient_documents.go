package jobs

import (
	"context"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

func init() {
	job.Register(&job.Definition{
		Name:        "close-patient-documents",
		Description: "Close all documents on a Nexus patient's close pathway",
		Run:         runClosePatientDocuments,
	})
}

func runClosePatientDocuments(ctx context.Context, params job.Params) (any, error) {
	patientID, err := params.Int("patient-id")
	if err != nil {
		return nil, err
	}

	client, err := newNexusClient(ctx)
	if err != nil {
		return nil, err
	}

	if err := client.ClosePatientDocuments(ctx, patientID); err != nil {
		return nil, err
	}
	return map[string]any{"closed": true}, nil
}
