package datafordeler

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAddressFormat(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			name: "house",
			addr: Address{Vejadresseringsnavn: "Torvet", Husnummer: "001", Postnummer: "5800", Postdistrikt: "Nyborg"},
			want: "Torvet 1, 5800 Nyborg",
		},
		{
			name: "letter suffix",
			addr: Address{Vejadresseringsnavn: "Ringvej", Husnummer: "005C", Postnummer: "5800", Postdistrikt: "Nyborg"},
			want: "Ringvej 5C, 5800 Nyborg",
		},
		{
			name: "floor and door",
			addr: Address{Vejadresseringsnavn: "Kongegade", Husnummer: "012", Etage: "02", Sidedoer: "tv", Postnummer: "5800", Postdistrikt: "Nyborg"},
			want: "Kongegade 12, 2. tv, 5800 Nyborg",
		},
		{
			name: "ground floor",
			addr: Address{Vejadresseringsnavn: "Kongegade", Husnummer: "012", Etage: "st", Postnummer: "5800", Postdistrikt: "Nyborg"},
			want: "Kongegade 12, st., 5800 Nyborg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPruneHistorical(t *testing.T) {
	obj := map[string]any{
		"foedselsdato": "1980-05-13",
		"Navne": []any{
			map[string]any{"Navn": map[string]any{"fornavne": "Anne", "status": "aktuel"}},
			map[string]any{"Navn": map[string]any{"fornavne": "Anna", "status": "historisk"}},
		},
	}

	pruned := PruneHistorical(obj)
	if pruned["foedselsdato"] != "1980-05-13" {
		t.Errorf("scalar field changed: %v", pruned["foedselsdato"])
	}
	names := pruned["Navne"].([]any)
	if len(names) != 1 {
		t.Fatalf("got %d names, want 1", len(names))
	}
	name := names[0].(map[string]any)["Navn"].(map[string]any)
	if name["fornavne"] != "Anne" {
		t.Errorf("kept the wrong entry: %v", name)
	}
}

func TestCitizens(t *testing.T) {
	record := `{
		"foedselsdato": "1960-03-01",
		"Personnumre": [
			{"Personnummer": {"personnummer": "0103601234", "status": "aktuel"}}
		],
		"Navne": [
			{"Navn": {"fornavne": "Anne Marie", "efternavn": "Jensen", "status": "aktuel"}}
		],
		"Adresseoplysninger": [
			{"Adresseoplysninger": {"CprAdresse": {"vejadresseringsnavn": "Torvet", "husnummer": "001", "postnummer": "5800", "postdistrikt": "Nyborg"}}}
		],
		"Civilstande": [
			{"Civilstand": {"Civilstandstype": "gift", "status": "aktuel", "virkningFra": "1985-06-15", "Aegtefaelle": {"aegtefaellePersonnummer": "0105585678"}}}
		]
	}`

	citizens, err := Citizens([]json.RawMessage{json.RawMessage(record)})
	if err != nil {
		t.Fatalf("Citizens failed: %v", err)
	}
	if len(citizens) != 1 {
		t.Fatalf("got %d citizens", len(citizens))
	}

	c := citizens[0]
	if c.CPR != "0103601234" || c.Name != "Anne Marie Jensen" {
		t.Errorf("citizen = %+v", c)
	}
	if c.Address != "Torvet 1, 5800 Nyborg" {
		t.Errorf("address = %q", c.Address)
	}
	if !c.Birthday.Equal(time.Date(1960, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("birthday = %v", c.Birthday)
	}
	if c.CivilStatus != "gift" || c.PartnerCPR != "0105585678" {
		t.Errorf("civil status = %q, partner = %q", c.CivilStatus, c.PartnerCPR)
	}
	if !c.CivilValidFrom.Equal(time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("civil valid from = %v", c.CivilValidFrom)
	}
}

func TestCitizensMissingCPR(t *testing.T) {
	record := `{"Personnumre": [{"Personnummer": {"personnummer": "0103601234", "status": "historisk"}}]}`
	if _, err := Citizens([]json.RawMessage{json.RawMessage(record)}); err == nil {
		t.Error("expected error for record without current CPR")
	}
}
