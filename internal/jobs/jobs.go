// Package jobs contains the automation jobs. Each job registers itself in the
// default job registry and is invoked by name from the command line or the
// scheduler.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/connector/nexus"
	"github.com/nyborg-rpa/rpa-core/internal/connector/rollekatalog"
	"github.com/nyborg-rpa/rpa-core/internal/connector/sofd"
	"github.com/nyborg-rpa/rpa-core/internal/credstore"
)

// newGraphClient builds a Microsoft Graph client from the environment.
func newGraphClient(ctx context.Context) (*graph.Client, *config.GraphConfig, error) {
	cfg := config.LoadGraphConfig()
	client, err := graph.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// newSofdClient builds an OS2sofd client from the environment.
func newSofdClient() (*sofd.Client, error) {
	cfg := config.LoadSofdConfig()
	return sofd.New(&sofd.Config{Kommune: cfg.Kommune, APIKey: cfg.APIKey})
}

// newRollekatalogClient builds an OS2rollekatalog client from the environment.
func newRollekatalogClient() (*rollekatalog.Client, error) {
	cfg := config.LoadRollekatalogConfig()
	return rollekatalog.New(&rollekatalog.Config{Kommune: cfg.Kommune, APIKey: cfg.APIKey})
}

// newNexusClient builds a KMD Nexus client. The API credential lives in the
// credential store under name "API", program "Nexus-Drift".
func newNexusClient(ctx context.Context) (*nexus.Client, error) {
	store, err := credstore.Open(config.LoadCredStoreConfig())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	login, err := store.Lookup(ctx, "API", "Nexus-Drift")
	if err != nil {
		return nil, fmt.Errorf("nexus credentials: %w", err)
	}

	nexusCfg := config.LoadNexusConfig()
	return nexus.New(ctx, &nexus.Config{
		ClientID:     login.Username,
		ClientSecret: login.Password,
		Instance:     nexusCfg.Instance,
		Environment:  nexusCfg.Environment,
	})
}

// mailBody wraps content paragraphs in the HTML template used for all report
// mails, signed off by the robot.
func mailBody(content string) string {
	const typography = "font-family: Arial, sans-serif; font-size: 12px"
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0; padding:0; %s; line-height:1.4;">
%s
<p>Venlig hilsen,<br>Robotten</p>
</body>
</html>`, typography, content)
}

// splitRecipients parses a comma separated recipient list parameter.
func splitRecipients(s string) ([]string, error) {
	var recipients []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients given")
	}
	return recipients, nil
}
