package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// skuNamesURL is Microsoft's published mapping from SKU string IDs to product
// display names.
// https://learn.microsoft.com/en-us/entra/identity/users/licensing-service-plan-reference
const skuNamesURL = "https://download.microsoft.com/download/e/3/e/e3e9faf2-f28b-490a-9ada-c6089a1fc5b0/Product%20names%20and%20service%20plan%20identifiers%20for%20licensing.csv"

// notificationThresholds lists the SKUs that trigger notifications and the
// free-unit count at which they do.
var notificationThresholds = map[string]int{
	"M365EDU_A3_FACULTY": 3, // Microsoft 365 A3 for Faculty
	"SPE_F1":             3, // Microsoft 365 F3
	"SPE_E3":             5, // Microsoft 365 E3
	"MCOEV":              3, // Microsoft Teams Phone Standard
	"MCOEV_FACULTY":      3, // Microsoft Teams Phone Standard for Faculty
}

func init() {
	job.Register(&job.Definition{
		Name:        "license-monitor",
		Description: "Alert by mail when Microsoft 365 licenses run low",
		Run:         runLicenseMonitor,
	})
}

type skuStatus struct {
	ProductName   string
	SKUPartNumber string
	PrepaidUnits  int
	ConsumedUnits int
	FreeUnits     int
	Threshold     int
}

func runLicenseMonitor(ctx context.Context, params job.Params) (any, error) {
	recipientsParam, err := params.String("recipients")
	if err != nil {
		return nil, err
	}
	recipients, err := splitRecipients(recipientsParam)
	if err != nil {
		return nil, err
	}

	client, cfg, err := newGraphClient(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("fetching sku product name mapping")
	names, err := fetchSKUProductNames(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("fetching subscribed skus")
	skus, err := client.SubscribedSKUs(ctx)
	if err != nil {
		return nil, err
	}

	alerts := lowLicenseAlerts(skus, names)
	if len(alerts) == 0 {
		log.Printf("all monitored skus above threshold")
		return map[string]any{"alerts": 0}, nil
	}

	body := mailBody(fmt.Sprintf(
		`<p>Følgende Microsoft 365 licenser er ved at løbe tør:</p>
%s
<p>Du kan administrere licenserne i <a href="https://entra.microsoft.com/#view/Microsoft_AAD_IAM/LicensesMenuBlade/~/Products">Microsoft Entra admin center</a>.</p>`,
		alertTable(alerts)))

	err = client.SendMail(ctx, &graph.Mail{
		Sender:     cfg.Mailbox,
		Recipients: recipients,
		Subject:    "MS365 licenser udløbsadvarsel",
		Body:       body,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{"alerts": len(alerts)}, nil
}

// fetchSKUProductNames downloads and parses the SKU name CSV.
func fetchSKUProductNames(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, skuNamesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create sku names request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download sku names: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download sku names: status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read sku names header: %w", err)
	}
	idCol, nameCol := -1, -1
	for i, col := range header {
		switch col {
		case "String_Id":
			idCol = i
		case "Product_Display_Name":
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("sku names csv missing expected columns: %v", header)
	}

	names := make(map[string]string)
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) > idCol && len(record) > nameCol {
			names[record[idCol]] = record[nameCol]
		}
	}
	return names, nil
}

// lowLicenseAlerts returns the monitored SKUs at or below their threshold,
// sorted by free units.
func lowLicenseAlerts(skus []graph.SubscribedSKU, names map[string]string) []skuStatus {
	var alerts []skuStatus
	for _, sku := range skus {
		threshold, monitored := notificationThresholds[sku.SKUPartNumber]
		if !monitored || sku.FreeUnits() > threshold {
			continue
		}
		alerts = append(alerts, skuStatus{
			ProductName:   names[sku.SKUPartNumber],
			SKUPartNumber: sku.SKUPartNumber,
			PrepaidUnits:  sku.PrepaidUnits.Enabled,
			ConsumedUnits: sku.ConsumedUnits,
			FreeUnits:     sku.FreeUnits(),
			Threshold:     threshold,
		})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].FreeUnits < alerts[j].FreeUnits })
	return alerts
}

func alertTable(alerts []skuStatus) string {
	var sb strings.Builder
	sb.WriteString("<table border=\"1\"><tr>")
	for _, h := range []string{"productName", "skuPartNumber", "prepaidUnits", "consumedUnits", "freeUnits", "notificationThreshold"} {
		fmt.Fprintf(&sb, "<th>%s</th>", h)
	}
	sb.WriteString("</tr>")
	for _, a := range alerts {
		fmt.Fprintf(&sb, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>",
			a.ProductName, a.SKUPartNumber, a.PrepaidUnits, a.ConsumedUnits, a.FreeUnits, a.Threshold)
	}
	sb.WriteString("</table>")
	return sb.String()
}
