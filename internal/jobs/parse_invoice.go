package jobs

import (
	"context"

	"github.com/nyborg-rpa/rpa-core/internal/invoice"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

func init() {
	job.Register(&job.Definition{
		Name:        "parse-invoice",
		Description: "Extract metadata and line items from an OIOUBL invoice",
		Run:         runParseInvoice,
	})
}

func runParseInvoice(ctx context.Context, params job.Params) (any, error) {
	path, err := params.String("filepath")
	if err != nil {
		return nil, err
	}

	meta, items, err := invoice.ParseFile(path)
	if err != nil {
		return nil, err
	}

	return []any{meta, items}, nil
}
