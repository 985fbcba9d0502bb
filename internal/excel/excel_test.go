package excel

import (
	"path/filepath"
	"testing"
)

func TestWriteAndReadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	table := &Table{
		Headers: []string{"Navn", "Afdeling", "Antal"},
		Rows: [][]any{
			{"Anne Jensen", "Sundhed og Omsorg", 3},
			{"Bo Hansen", "Teknik", 12},
		},
	}

	if err := WriteTable(path, "Rapport", table); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}

	rows, err := ReadSheet(path, "Rapport")
	if err != nil {
		t.Fatalf("ReadSheet failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Navn" || rows[0][2] != "Antal" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "Anne Jensen" || rows[2][2] != "12" {
		t.Errorf("data rows = %v", rows[1:])
	}
}

func TestWriteTableRejectsRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")

	err := WriteTable(path, "Sheet1", &Table{
		Headers: []string{"A", "B"},
		Rows:    [][]any{{"only one"}},
	})
	if err == nil {
		t.Fatal("expected error for ragged row")
	}
}
