package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseAddressDetails(t *testing.T) {
	addr, ok := parseAddressDetails("Torvet 1, 5800 Nyborg")
	if !ok {
		t.Fatal("expected address to parse")
	}
	if addr.Street != "Torvet 1" || addr.PostalCode != "5800" || addr.City != "Nyborg" {
		t.Errorf("address = %+v", addr)
	}

	addr, ok = parseAddressDetails("Ringvej 3a, st. tv, 5800 Nyborg")
	if !ok {
		t.Fatal("expected address to parse")
	}
	if addr.Street != "Ringvej 3a" || addr.PostalCode != "5800" {
		t.Errorf("address = %+v", addr)
	}

	if _, ok := parseAddressDetails("ingen adresse"); ok {
		t.Error("expected parse failure without comma")
	}
}

func TestLosRowDepartmentBackfill(t *testing.T) {
	row := losRow{Levels: []string{"", "", "Sundhed og Omsorg", "Hjemmeplejen", "", ""}}
	if got := row.Department(); got != "Sundhed og Omsorg" {
		t.Errorf("Department = %q", got)
	}

	empty := losRow{Levels: make([]string, 6)}
	if got := empty.Department(); got != "" {
		t.Errorf("Department = %q, want empty", got)
	}
}

func TestBuildDepartmentsSpecialCases(t *testing.T) {
	rows := []losRow{
		{ServiceNumber: "1", Levels: []string{"Tim Jeppesen"}, Address: "Torvet 1, 5800 Nyborg", PNumber: "1001"},
		{ServiceNumber: "2", Levels: []string{"Vicekommunaldirektør"}, Address: "Ringvej 1, 5800 Nyborg", PNumber: "1002"},
		{ServiceNumber: "3", Levels: []string{"Lone Grangaard Lorenzen"}, Level5: "Skoleafdelingen", Address: "Skolevej 2, 5800 Nyborg", PNumber: "1003"},
		{ServiceNumber: "4", Levels: []string{"Teknik"}, Address: "Vej 3, 5800 Nyborg", PNumber: "1004"},
	}

	// No CPR mapping, so no SOFD lookups happen.
	departments, err := buildDepartments(context.Background(), nil, rows, map[string]string{})
	if err != nil {
		t.Fatalf("buildDepartments failed: %v", err)
	}

	byName := make(map[string][]department)
	for _, d := range departments {
		byName[d.Name] = append(byName[d.Name], d)
	}

	if len(byName["Direktion"]) != 1 || len(byName["Direktionssekretariat"]) != 1 {
		t.Errorf("Tim Jeppesen row should expand to Direktion and Direktionssekretariat: %v", byName)
	}
	vice := byName["Vicekommunaldirektør"]
	if len(vice) != 1 || vice[0].Manager != "anso" || vice[0].Address != "Torvet 1, 5800 Nyborg" {
		t.Errorf("Vicekommunaldirektør = %+v", vice)
	}
	if len(byName["Sundhed og Ældre"]) != 1 {
		t.Errorf("missing Sundhed og Ældre expansion: %v", byName)
	}
	skole := byName["Skoleafdelingen"]
	if len(skole) != 1 || skole[0].PNumber != "1003" {
		t.Errorf("Lone Grangaard Lorenzen should map to Niveau 5: %+v", skole)
	}
	if len(byName["Teknik"]) != 1 {
		t.Errorf("plain department missing: %v", byName)
	}
}

func TestMatchDepartmentsCollapsesDuplicates(t *testing.T) {
	departments := []department{
		{Name: "Teknik", Manager: "abc", Address: "Vej 3, 5800 Nyborg"},
		{Name: "Teknik", Manager: "abc", Address: "Vej 3, 5800 Nyborg"},
		{Name: "Sundhed", Manager: "def"},
	}

	matches := matchDepartments(departments, "Teknik")
	if len(matches) != 1 {
		t.Errorf("got %d matches, want 1 after dedup", len(matches))
	}
}

func TestReadSDEmployeeCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AnsatteMedarbejdere.csv")
	// Windows-1252 encoded content: 0xE6 is æ.
	content := []byte("CPR-nummer;Tjenestenummer;Navn\n130580-1234;42;J\xE6rgen\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	byService, err := readSDEmployeeCSV(path)
	if err != nil {
		t.Fatalf("readSDEmployeeCSV failed: %v", err)
	}
	if byService["42"] != "130580-1234" {
		t.Errorf("mapping = %v", byService)
	}
}
