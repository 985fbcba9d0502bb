package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// movedPatientsListName is the citizen list that tracks citizens who moved
// out of the municipality while holding assistive equipment.
const movedPatientsListName = "Borger fraflyttet kommunen med hjælpemiddel"

func init() {
	job.Register(&job.Definition{
		Name:        "find-moved-patients",
		Description: "Report citizens newly appearing on the moved-with-equipment list",
		Run:         runFindMovedPatients,
	})
}

func runFindMovedPatients(ctx context.Context, params job.Params) (any, error) {
	recipientsParam, err := params.String("recipients")
	if err != nil {
		return nil, err
	}
	recipients, err := splitRecipients(recipientsParam)
	if err != nil {
		return nil, err
	}
	statePath, err := params.String("state-file")
	if err != nil {
		return nil, err
	}

	previous, err := readPatientIDFile(statePath)
	if err != nil {
		return nil, err
	}

	nx, err := newNexusClient(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("fetching citizen list %q", movedPatientsListName)
	current, err := nx.CitizenListPatientIDs(ctx, movedPatientsListName)
	if err != nil {
		return nil, err
	}

	var added []string
	for id := range current {
		if !previous[id] {
			added = append(added, id)
		}
	}
	sort.Strings(added)

	if len(added) == 0 {
		log.Printf("no new patients on the list")
		return map[string]any{"new": 0}, nil
	}

	log.Printf("found %d new patients, sending report", len(added))
	gc, graphCfg, err := newGraphClient(ctx)
	if err != nil {
		return nil, err
	}

	nexusCfg := config.LoadNexusConfig()
	body := mailBody(fmt.Sprintf(
		"<p>Følgende borgere er nye på listen %q:</p>\n%s",
		movedPatientsListName, movedPatientsTable(added, citizenBaseURL(nexusCfg))))

	err = gc.SendMail(ctx, &graph.Mail{
		Sender:     graphCfg.Mailbox,
		Recipients: recipients,
		Subject:    "Rapport: Nye fraflyttede borgere med hjælpemiddel",
		Body:       body,
	})
	if err != nil {
		return nil, err
	}

	if err := writePatientIDFile(statePath, current); err != nil {
		return nil, err
	}

	return map[string]any{"new": len(added)}, nil
}

// readPatientIDFile reads a patient id set, one id per line. A missing file
// is an empty set, so the first run reports every patient on the list.
func readPatientIDFile(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read patient ids %s: %w", path, err)
	}

	ids := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids[line] = true
		}
	}
	return ids, nil
}

// writePatientIDFile writes a patient id set, sorted one id per line.
func writePatientIDFile(path string, ids map[string]bool) error {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var sb strings.Builder
	for _, id := range sorted {
		sb.WriteString(id + "\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write patient ids %s: %w", path, err)
	}
	return nil
}

// movedPatientsTable renders the new patient ids with links to their citizen
// pages.
func movedPatientsTable(ids []string, citizenBase string) string {
	var sb strings.Builder
	sb.WriteString("<table border=\"1\"><tr><th>Borgere</th></tr>")
	for _, id := range ids {
		fmt.Fprintf(&sb, "<tr><td><a href=\"%s%s\">%s</a></td></tr>", citizenBase, id, id)
	}
	sb.WriteString("</table>")
	return sb.String()
}
