package jobs

import (
	"strings"
	"testing"

	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
)

func sku(partNumber string, enabled, consumed int) graph.SubscribedSKU {
	s := graph.SubscribedSKU{SKUPartNumber: partNumber, ConsumedUnits: consumed}
	s.PrepaidUnits.Enabled = enabled
	return s
}

func TestLowLicenseAlerts(t *testing.T) {
	skus := []graph.SubscribedSKU{
		sku("SPE_E3", 100, 97),     // 3 free, threshold 5 -> alert
		sku("SPE_F1", 50, 46),      // 4 free, threshold 3 -> fine
		sku("MCOEV", 10, 10),       // 0 free -> alert
		sku("UNMONITORED", 10, 10), // not in the threshold map
	}
	names := map[string]string{
		"SPE_E3": "Microsoft 365 E3",
		"MCOEV":  "Microsoft Teams Phone Standard",
	}

	alerts := lowLicenseAlerts(skus, names)
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2: %+v", len(alerts), alerts)
	}
	// Sorted by free units ascending.
	if alerts[0].SKUPartNumber != "MCOEV" || alerts[0].FreeUnits != 0 {
		t.Errorf("alerts[0] = %+v", alerts[0])
	}
	if alerts[1].SKUPartNumber != "SPE_E3" || alerts[1].FreeUnits != 3 {
		t.Errorf("alerts[1] = %+v", alerts[1])
	}
	if alerts[1].ProductName != "Microsoft 365 E3" {
		t.Errorf("ProductName = %q", alerts[1].ProductName)
	}
	if alerts[1].Threshold != 5 {
		t.Errorf("Threshold = %d", alerts[1].Threshold)
	}
}

func TestLowLicenseAlertsAtThreshold(t *testing.T) {
	alerts := lowLicenseAlerts([]graph.SubscribedSKU{sku("SPE_F1", 10, 7)}, nil)
	if len(alerts) != 1 {
		t.Fatalf("a SKU exactly at its threshold should alert: %+v", alerts)
	}
}

func TestAlertTable(t *testing.T) {
	table := alertTable([]skuStatus{{
		ProductName:   "Microsoft 365 E3",
		SKUPartNumber: "SPE_E3",
		PrepaidUnits:  100,
		ConsumedUnits: 97,
		FreeUnits:     3,
		Threshold:     5,
	}})

	for _, want := range []string{"<table", "Microsoft 365 E3", "SPE_E3", "<td>3</td>", "<td>5</td>"} {
		if !strings.Contains(table, want) {
			t.Errorf("table missing %q:\n%s", want, table)
		}
	}
}
