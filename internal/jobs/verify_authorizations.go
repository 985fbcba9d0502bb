package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/nyborg-rpa/rpa-core/internal/connector/autreg"
	"github.com/nyborg-rpa/rpa-core/internal/excel"
	"github.com/nyborg-rpa/rpa-core/internal/job"
	"github.com/nyborg-rpa/rpa-core/pkg/cpr"
)

// sdExportHeader is the expected header of the SD Løn nurse export. It sits
// on line 25, after a preamble block.
const sdExportHeader = `="Afdeling (Ny 4)";="Tjenestenummer";="CPR-nummer";="Navn (for-/efternavn)";="Stillingskode nuværende";="Stilling"`

// sdExportHeaderLine is the zero-based line index of the header.
const sdExportHeaderLine = 24

func init() {
	job.Register(&job.Definition{
		Name:        "verify-authorizations",
		Description: "Verify nurse authorizations against the health authority registry",
		Run:         runVerifyAuthorizations,
	})
}

// nurseRow is one row of the SD export plus the verification verdict.
type nurseRow struct {
	Name         string
	CPR          string
	Position     string
	PositionCode string
	Status       autreg.Status
}

func runVerifyAuthorizations(ctx context.Context, params job.Params) (any, error) {
	filePath, err := params.String("filepath")
	if err != nil {
		return nil, err
	}
	outputDir, err := params.String("output-dir")
	if err != nil {
		return nil, err
	}

	nurses, err := readSDNurseExport(filePath)
	if err != nil {
		return nil, err
	}

	client := autreg.New()
	for i := range nurses {
		log.Printf("verifying %s", nurses[i].Name)
		status, err := client.Verify(ctx, strings.ToLower(strings.TrimSpace(nurses[i].Name)), nurses[i].CPR)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", nurses[i].Name, err)
		}
		nurses[i].Status = status
	}

	log.Printf("saving authorization reports to %s", outputDir)
	if err := writeAuthorizationReports(outputDir, nurses); err != nil {
		return nil, err
	}

	invalid := 0
	for _, n := range nurses {
		if n.Status != autreg.StatusValid {
			invalid++
		}
	}
	return map[string]any{"verified": len(nurses), "flagged": invalid}, nil
}

// readSDNurseExport parses the SD Løn CSV. SD wraps every field in ="..." to
// stop Excel from mangling the values; this wrapping is stripped before
// parsing.
func readSDNurseExport(path string) ([]nurseRow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SD export %s: %w", path, err)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode SD export %s: %w", path, err)
	}

	lines := strings.Split(strings.ReplaceAll(string(decoded), "\r\n", "\n"), "\n")
	if len(lines) <= sdExportHeaderLine || lines[sdExportHeaderLine] != sdExportHeader {
		return nil, fmt.Errorf("SD export %s does not have the expected header on line %d", path, sdExportHeaderLine+1)
	}

	text := strings.Join(lines[sdExportHeaderLine:], "\n")
	text = strings.NewReplacer(`="`, "", `"`, "", "=", "").Replace(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse SD export %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("SD export %s has no rows", path)
	}

	col := make(map[string]int)
	for i, h := range records[0] {
		col[strings.TrimSpace(h)] = i
	}

	var nurses []nurseRow
	for _, record := range records[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := nurseRow{
			Name:         get("Navn (for-/efternavn)"),
			CPR:          get("CPR-nummer"),
			Position:     get("Stilling"),
			PositionCode: get("Stillingskode nuværende"),
		}
		if row.Name == "" || row.CPR == "" {
			continue
		}
		nurses = append(nurses, row)
	}
	return nurses, nil
}

// writeAuthorizationReports writes the full report plus a second file holding
// only the rows that need attention.
func writeAuthorizationReports(outputDir string, nurses []nurseRow) error {
	headers := []string{"Navn", "Fødselsdag", "Stillingsbetegnelse", "Stillingskode", "Status"}

	var all, flagged [][]any
	for _, n := range nurses {
		birthday := n.CPR
		if s, err := cpr.Normalize(n.CPR); err == nil {
			birthday = s[:2] + "-" + s[2:4] + "-" + s[4:6]
		}
		row := []any{n.Name, birthday, n.Position, n.PositionCode, string(n.Status)}
		all = append(all, row)
		if n.Status != autreg.StatusValid {
			flagged = append(flagged, row)
		}
	}

	err := excel.WriteTable(filepath.Join(outputDir, "sygeplejersker_auth_report.xlsx"), "Kontrol",
		&excel.Table{Headers: headers, Rows: all})
	if err != nil {
		return err
	}
	return excel.WriteTable(filepath.Join(outputDir, "sygeplejersker_auth_report_invalid.xlsx"), "Kontrol",
		&excel.Table{Headers: headers, Rows: flagged})
}
