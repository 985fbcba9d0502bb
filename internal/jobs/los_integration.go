package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/connector/sofd"
	"github.com/nyborg-rpa/rpa-core/internal/excel"
	"github.com/nyborg-rpa/rpa-core/internal/job"
	"github.com/nyborg-rpa/rpa-core/pkg/cpr"
)

func init() {
	job.Register(&job.Definition{
		Name:        "los-integration",
		Description: "Merge LOS organisation data into OS2sofd and report mismatches",
		Run:         runLOSIntegration,
	})
}

// department is the per-department view of the merged LOS and SD payroll
// data: who leads it and where it lives.
type department struct {
	Name    string
	Manager string
	Address string
	PNumber string
}

// orgMismatch is an OS2sofd org unit without a usable LOS match.
type orgMismatch struct {
	Name   string
	Source string
	Path   string
}

func runLOSIntegration(ctx context.Context, params job.Params) (any, error) {
	workingDir, err := params.String("working-dir")
	if err != nil {
		return nil, err
	}
	recipientsParam, err := params.String("recipients")
	if err != nil {
		return nil, err
	}
	recipients, err := splitRecipients(recipientsParam)
	if err != nil {
		return nil, err
	}

	client, err := newSofdClient()
	if err != nil {
		return nil, err
	}

	losRows, err := readLOSSheet(filepath.Join(workingDir, "LOS.xlsx"))
	if err != nil {
		return nil, err
	}
	cprByServiceNumber, err := readSDEmployeeCSV(filepath.Join(workingDir, "AnsatteMedarbejdere.csv"))
	if err != nil {
		return nil, err
	}

	departments, err := buildDepartments(ctx, client, losRows, cprByServiceNumber)
	if err != nil {
		return nil, err
	}

	mismatches, updated, err := updateOrgUnits(ctx, client, departments)
	if err != nil {
		return nil, err
	}

	// The mismatch report only goes out on Mondays.
	if time.Now().Weekday() == time.Monday {
		if err := sendMismatchReport(ctx, client, workingDir, recipients, mismatches); err != nil {
			return nil, err
		}
	}

	return map[string]any{"updated": updated, "mismatches": len(mismatches)}, nil
}

// =============================================================================
// INPUT FILES
// =============================================================================

// losRow is one row of the LOS export with the columns the merge consumes.
type losRow struct {
	ServiceNumber string
	Levels        []string // Niveau 2 through Niveau 7
	Level5        string
	PNumber       string // Niveau 9
	Address       string // Niveau 10
}

// Department returns the most specific organisational level that is filled
// in, searching Niveau 2 through 7.
func (r *losRow) Department() string {
	for _, level := range r.Levels {
		if level != "" {
			return level
		}
	}
	return ""
}

func readLOSSheet(path string) ([]losRow, error) {
	rows, err := excel.ReadSheet(path, "Sheet1")
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("LOS sheet %s has no rows", path)
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Tjeneste nr.", "Niveau 2", "Niveau 9", "Niveau 10"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("LOS sheet %s missing column %q", path, required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []losRow
	for _, row := range rows[1:] {
		r := losRow{
			ServiceNumber: cell(row, "Tjeneste nr."),
			Level5:        cell(row, "Niveau 5"),
			PNumber:       cell(row, "Niveau 9"),
			Address:       cell(row, "Niveau 10"),
		}
		if r.ServiceNumber == "" {
			continue
		}
		for level := 2; level <= 7; level++ {
			r.Levels = append(r.Levels, cell(row, fmt.Sprintf("Niveau %d", level)))
		}
		out = append(out, r)
	}
	return out, nil
}

// readSDEmployeeCSV maps service numbers to CPR numbers from the SD payroll
// export, which comes semicolon separated in Windows-1252.
func readSDEmployeeCSV(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open SD export %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(transform.NewReader(f, charmap.Windows1252.NewDecoder()))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse SD export %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("SD export %s has no rows", path)
	}

	cprCol, serviceCol := -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(h) {
		case "CPR-nummer":
			cprCol = i
		case "Tjenestenummer":
			serviceCol = i
		}
	}
	if cprCol < 0 || serviceCol < 0 {
		return nil, fmt.Errorf("SD export %s missing CPR-nummer/Tjenestenummer columns", path)
	}

	out := make(map[string]string)
	for _, record := range records[1:] {
		if len(record) <= cprCol || len(record) <= serviceCol {
			continue
		}
		if service := strings.TrimSpace(record[serviceCol]); service != "" {
			out[service] = strings.TrimSpace(record[cprCol])
		}
	}
	return out, nil
}

// =============================================================================
// MERGE
// =============================================================================

// buildDepartments merges LOS rows with payroll CPRs into one entry per
// department, expanding the handful of hand-maintained special cases where
// the LOS export names a person or a title instead of a department.
func buildDepartments(ctx context.Context, client *sofd.Client, losRows []losRow, cprByServiceNumber map[string]string) ([]department, error) {
	var out []department
	for _, row := range losRows {
		name := row.Department()
		if name == "" {
			continue
		}

		username := ""
		if number, ok := cprByServiceNumber[row.ServiceNumber]; ok && number != "" {
			number, err := cpr.Normalize(number)
			if err != nil {
				return nil, fmt.Errorf("service number %s: %w", row.ServiceNumber, err)
			}
			person, err := client.PersonByCPR(ctx, number)
			if err != nil {
				return nil, err
			}
			if person != nil {
				username, _ = person.Username()
			}
		}

		switch name {
		case "Tim Jeppesen":
			out = append(out,
				department{Name: "Direktion", Manager: username, Address: row.Address, PNumber: row.PNumber},
				department{Name: "Direktionssekretariat", Manager: username, Address: row.Address, PNumber: row.PNumber})
		case "Vicekommunaldirektør":
			out = append(out,
				department{Name: "Sundhed og Ældre", Manager: username, Address: row.Address, PNumber: row.PNumber},
				department{Name: name, Manager: "anso", Address: "Torvet 1, 5800 Nyborg"})
		case "Direktør":
			out = append(out,
				department{Name: "Arbejdsmarked og Borgerservice", Manager: username, Address: row.Address, PNumber: row.PNumber},
				department{Name: name, Manager: "logl", Address: row.Address})
		case "Lone Grangaard Lorenzen":
			out = append(out, department{Name: row.Level5, Manager: username, Address: row.Address, PNumber: row.PNumber})
		default:
			out = append(out, department{Name: name, Manager: username, Address: row.Address, PNumber: row.PNumber})
		}
	}
	return out, nil
}

// =============================================================================
// OS2SOFD UPDATE
// =============================================================================

func updateOrgUnits(ctx context.Context, client *sofd.Client, departments []department) ([]orgMismatch, int, error) {
	orgs, err := client.OrgUnits(ctx)
	if err != nil {
		return nil, 0, err
	}

	var mismatches []orgMismatch
	updated := 0
	for i := range orgs {
		org := &orgs[i]

		// An rpa-override tag without a value skips the org unit entirely;
		// with a value, the value replaces the org name in the LOS match.
		override, hasOverride := org.OverrideTag()
		if hasOverride && override == "" {
			log.Printf("skipping %q due to rpa-override tag without value", org.Name)
			continue
		}

		name := org.Name
		source := "LOS"
		if override != "" {
			log.Printf("using override %q -> %q", org.Name, override)
			name = override
			source = "RPA Override"
		}

		matches := matchDepartments(departments, name)
		if len(matches) == 0 {
			mismatches = append(mismatches, orgMismatch{Name: org.Name, Source: source})
			continue
		}
		if len(matches) > 1 {
			return nil, 0, fmt.Errorf("multiple LOS matches for %q", name)
		}
		match := matches[0]

		if match.Manager != "" {
			manager, err := client.PersonByUsername(ctx, match.Manager)
			if err != nil {
				return nil, 0, err
			}
			if manager != nil {
				if err := client.AssignManager(ctx, org.UUID, manager.UUID); err != nil {
					return nil, 0, err
				}
			}
		}

		if match.PNumber != "" && !isDigits(match.PNumber) {
			mismatches = append(mismatches, orgMismatch{Name: org.Name, Source: source})
			continue
		}

		fields := map[string]any{"pnr": match.PNumber}
		if addr, ok := parseAddressDetails(match.Address); ok {
			fields["primaryAddress"] = map[string]any{
				"street":        addr.Street,
				"postalCode":    addr.PostalCode,
				"city":          addr.City,
				"country":       "Danmark",
				"prime":         true,
				"returnAddress": true,
			}
		}
		changed, err := client.PatchOrgUnit(ctx, org.UUID, fields)
		if err != nil {
			return nil, 0, err
		}
		if changed {
			updated++
		}
	}

	// Resolve full paths for the report while we still have the client.
	byName := make(map[string]*sofd.OrgUnit, len(orgs))
	for i := range orgs {
		byName[orgs[i].Name] = &orgs[i]
	}
	for i := range mismatches {
		if org, ok := byName[mismatches[i].Name]; ok && org.ParentUUID != "" {
			path, err := client.OrgPath(ctx, org, " > ")
			if err != nil {
				return nil, 0, err
			}
			mismatches[i].Path = path
		}
	}

	return mismatches, updated, nil
}

// matchDepartments finds departments by name, collapsing fully identical
// duplicates.
func matchDepartments(departments []department, name string) []department {
	seen := make(map[department]bool)
	var matches []department
	for _, d := range departments {
		if d.Name == name && !seen[d] {
			seen[d] = true
			matches = append(matches, d)
		}
	}
	return matches
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// addressDetails is a street address split into its parts.
type addressDetails struct {
	Street     string
	PostalCode string
	City       string
}

// parseAddressDetails splits "Street name 12, 5000 Odense C" into street,
// postal code and city.
func parseAddressDetails(address string) (addressDetails, bool) {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return addressDetails{}, false
	}
	street := strings.TrimSpace(parts[0])
	zipCity := strings.TrimSpace(parts[len(parts)-1])
	zip, city, ok := strings.Cut(zipCity, " ")
	if !ok || street == "" {
		return addressDetails{}, false
	}
	return addressDetails{Street: street, PostalCode: zip, City: strings.TrimSpace(city)}, true
}

// =============================================================================
// REPORT
// =============================================================================

func sendMismatchReport(ctx context.Context, client *sofd.Client, workingDir string, recipients []string, mismatches []orgMismatch) error {
	var rows [][]any
	for _, m := range mismatches {
		if m.Path == "" {
			continue
		}
		rows = append(rows, []any{m.Name, m.Source, m.Path})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][2].(string) < rows[j][2].(string) })

	reportFile := filepath.Join(workingDir, "los_integration_error_list.xlsx")
	err := excel.WriteTable(reportFile, "LOS Fejlliste", &excel.Table{
		Headers: []string{"Afdeling", "Kilde", "Overliggende afdelinger"},
		Rows:    rows,
	})
	if err != nil {
		return err
	}

	graphClient, graphCfg, err := newGraphClient(ctx)
	if err != nil {
		return err
	}

	body := mailBody(`<p>Vedhæftet finder du <strong>los_integration_error_list.xlsx</strong> med afdelinger, som ikke kunne matches i LOS.</p>`)
	err = graphClient.SendMail(ctx, &graph.Mail{
		Sender:          graphCfg.Mailbox,
		Recipients:      recipients,
		Subject:         "Rapport: LOS integration OS2sofd - Fejlliste",
		Body:            body,
		AttachmentPaths: []string{reportFile},
	})
	if err != nil {
		return err
	}

	return os.Remove(reportFile)
}
