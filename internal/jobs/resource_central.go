package jobs

import (
	"context"
	"fmt"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

func init() {
	job.Register(&job.Definition{
		Name:        "resource-central",
		Description: "Move ResourceCentral mail attachments to the Prisme drop folder",
		Run:         runResourceCentral,
	})
}

func runResourceCentral(ctx context.Context, params job.Params) (any, error) {
	mailbox, err := params.String("mailbox")
	if err != nil {
		return nil, err
	}
	sender, err := params.String("sender")
	if err != nil {
		return nil, err
	}

	prismeCfg := config.LoadPrismeConfig()
	if prismeCfg.ResourceCentralDir == "" {
		return nil, fmt.Errorf("PRISME_PATH_RESSOURCE_CENTRAL is not set")
	}

	client, _, err := newGraphClient(ctx)
	if err != nil {
		return nil, err
	}

	messages, err := client.Messages(ctx, mailbox, &graph.MessageFilter{Sender: sender})
	if err != nil {
		return nil, err
	}

	saved := 0
	for _, msg := range messages {
		// Embedded logos and signatures are not invoices.
		paths, err := client.SaveAttachments(ctx, mailbox, msg.ID, prismeCfg.ResourceCentralDir, []string{".png", ".jpg"})
		if err != nil {
			return nil, err
		}
		saved += len(paths)

		if err := client.MoveMessage(ctx, mailbox, msg.ID, "Archive"); err != nil {
			return nil, err
		}
	}

	return map[string]any{"messages": len(messages), "attachments": saved}, nil
}
