package jobs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyborg-rpa/rpa-core/internal/connector/autreg"
	"github.com/nyborg-rpa/rpa-core/internal/excel"
)

func writeSDNurseExport(t *testing.T, rows []string) string {
	t.Helper()

	var sb strings.Builder
	for i := 0; i < sdExportHeaderLine; i++ {
		sb.WriteString("SD L\xF8n eksport preamble\r\n") // Windows-1252 ø
	}
	// Encode æ as Windows-1252 so the decoded header matches.
	sb.WriteString(strings.ReplaceAll(sdExportHeader, "æ", "\xE6"))
	sb.WriteString("\r\n")
	for _, row := range rows {
		sb.WriteString(row)
		sb.WriteString("\r\n")
	}

	path := filepath.Join(t.TempDir(), "sygeplejersker.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSDNurseExport(t *testing.T) {
	path := writeSDNurseExport(t, []string{
		`="Hjemmeplejen";="42";="130580-1234";="Anne Marie Jensen";="5160";="Sygeplejerske"`,
		`="Hjemmeplejen";="43";="";="Uden CPR";="5160";="Sygeplejerske"`,
	})

	nurses, err := readSDNurseExport(path)
	if err != nil {
		t.Fatalf("readSDNurseExport failed: %v", err)
	}
	if len(nurses) != 1 {
		t.Fatalf("got %d rows, want 1 (rows without CPR are skipped): %+v", len(nurses), nurses)
	}
	n := nurses[0]
	if n.Name != "Anne Marie Jensen" || n.CPR != "130580-1234" {
		t.Errorf("row = %+v", n)
	}
	if n.Position != "Sygeplejerske" || n.PositionCode != "5160" {
		t.Errorf("row = %+v", n)
	}
}

func TestReadSDNurseExportWrongHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sygeplejersker.csv")
	if err := os.WriteFile(path, []byte("helt forkert indhold\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readSDNurseExport(path); err == nil {
		t.Error("expected header error")
	}
}

func TestWriteAuthorizationReports(t *testing.T) {
	dir := t.TempDir()
	nurses := []nurseRow{
		{Name: "Anne Marie Jensen", CPR: "130580-1234", Position: "Sygeplejerske", PositionCode: "5160", Status: autreg.StatusValid},
		{Name: "Bo Jensen", CPR: "010170-5566", Position: "Sygeplejerske", PositionCode: "5160", Status: autreg.StatusManual},
	}

	if err := writeAuthorizationReports(dir, nurses); err != nil {
		t.Fatalf("writeAuthorizationReports failed: %v", err)
	}

	all, err := excel.ReadSheet(filepath.Join(dir, "sygeplejersker_auth_report.xlsx"), "Kontrol")
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("report rows = %d, want header plus 2", len(all))
	}
	if all[1][1] != "13-05-80" {
		t.Errorf("birthday = %q, want 13-05-80", all[1][1])
	}
	if all[1][4] != "Gyldig" {
		t.Errorf("status = %q", all[1][4])
	}

	flagged, err := excel.ReadSheet(filepath.Join(dir, "sygeplejersker_auth_report_invalid.xlsx"), "Kontrol")
	if err != nil {
		t.Fatalf("read flagged report: %v", err)
	}
	if len(flagged) != 2 {
		t.Fatalf("flagged rows = %d, want header plus 1", len(flagged))
	}
	if flagged[1][0] != "Bo Jensen" || flagged[1][4] != "Manuel" {
		t.Errorf("flagged row = %v", flagged[1])
	}
}
