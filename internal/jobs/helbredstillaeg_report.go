package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// helbredListName is the SharePoint list where the desktop flow logs every
// health allowance application and its calculation output.
const helbredListName = "01.11.02 Helbredstillæg"

// helbredManualMessages maps a calculation status message to the sentence the
// caseworker mail opens with. The Sygesirking typo is in the live template.
var helbredManualMessages = map[string]string{
	"Tidligere udbetalt": "Robotten fandt en tidligere udbetaling for samme behandling hos borgeren i KP, og er derfor sendt til manuel behandling",
	"Fandt ikke borger i KP, muligvis fejl indtastet CPR i APP":                       "Robotten kunne ikke finde borger i KP, muligvis fejl indtastet CPR nummer i App, og er derfor sendt til manuel behandling",
	"Fandt ikke borger i KP":                                                          "Robotten kunne ikke finde borger i KP, og er derfor sendt til manuel behandling",
	"Der er fundet flere relevante sager":                                             "Robotten fandt flere relevante sager hos borger i KP, og er derfor sendt til manuel behandling",
	"Indtastet behandlinger mangler beløb":                                            "Indtastet behandlinger har manglende beløb, og er derfor sendt til manuel behandling",
	"Borgers helbredsprocent er 0":                                                    "Robotten fandt ingen helbredsprocent hos borgeren i KP, og er derfor sendt til manuel behandling",
	"Kunne ikke finde borgers Sygesikring Danmark medlemsstatus":                      "Robotten kunne ikke finde borgerens medlems status af Sygesirking Danmark i KP, og er derfor sendt til manuel behandling",
	"Robotten kunne ikke finde borger i KP, og er derfor sendt til manuel behandling": "Robotten kunne ikke finde borger i KP, og er derfor sendt til manuel behandling",
	"Dublet": "Robotten har tidligere betalt samme kvittering, og vil derfor ikke behandle kvitteringen. Er derfor sendt til manuel behandling.",
}

func init() {
	job.Register(&job.Definition{
		Name:        "helbredstillaeg-mail-report",
		Description: "Render the caseworker mail for a manually routed health allowance application",
		Run:         runHelbredstillaegMailReport,
	})
}

// helbredOutput is the calculation verdict stored in the list item's Output
// column.
type helbredOutput struct {
	StatusMessage  string  `json:"status_message"`
	TotalPrice     float64 `json:"total_price"`
	HealthPct      float64 `json:"health_pct"`
	InsuranceGroup string  `json:"insurance_group_denmark"`
	Treatments     []struct {
		Behandling string   `json:"Behandling"`
		Pris       float64  `json:"Pris"`
		Tilskud    *float64 `json:"Tilskud"`
	} `json:"treatments"`
}

// helbredCase is the application data the mail describes, read off the list
// item fields.
type helbredCase struct {
	CPR                  string
	TreatmentType        string
	TreatmentDate        string
	HasSygesikringsandel bool
	HasYdernummer        bool
}

func runHelbredstillaegMailReport(ctx context.Context, params job.Params) (any, error) {
	itemID, err := params.Int("sharepoint-id")
	if err != nil {
		return nil, err
	}

	gc, _, err := newGraphClient(ctx)
	if err != nil {
		return nil, err
	}
	list, err := gc.SharePointList(ctx, rpaSiteURL, helbredListName)
	if err != nil {
		return nil, err
	}
	item, err := list.Item(ctx, strconv.Itoa(itemID))
	if err != nil {
		return nil, err
	}

	var output helbredOutput
	if err := json.Unmarshal([]byte(item.FieldString("Output")), &output); err != nil {
		return nil, fmt.Errorf("parse output of item %d: %w", itemID, err)
	}
	// An operator supplied message overrides the logged status.
	if msg := params.StringOr("message", ""); msg != "" {
		output.StatusMessage = msg
	}

	c := helbredCase{
		CPR:                  item.FieldString("CPR"),
		TreatmentType:        item.FieldString("Behandlingsform"),
		TreatmentDate:        formatHelbredDate(item.FieldString("Behandlingsdato")),
		HasSygesikringsandel: item.FieldBool("HarSygesikringsandel_x003f_"),
		HasYdernummer:        item.FieldBool("HarYdernummer_x003f_"),
	}

	body, err := helbredReportBody(&c, &output)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// formatHelbredDate normalizes a SharePoint date value to yyyy-mm-dd.
func formatHelbredDate(s string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// helbredManualMessage resolves the mail opening line for a status message.
func helbredManualMessage(status, treatmentType string) (string, error) {
	if status == "Der er ikke fundet en sag for behandlingen" {
		return fmt.Sprintf("Robotten kunne ikke finde en %s sag hos borgeren i KP, og er derfor sendt til manuel behandling", treatmentType), nil
	}
	msg, ok := helbredManualMessages[status]
	if !ok {
		return "", fmt.Errorf("no mail template for status %q", status)
	}
	return msg, nil
}

// helbredReportBody renders the caseworker mail for a manually routed
// application.
func helbredReportBody(c *helbredCase, output *helbredOutput) (string, error) {
	msg, err := helbredManualMessage(output.StatusMessage, c.TreatmentType)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<p>Hej,</p>\n<p>%s</p>\n", msg)

	fmt.Fprintf(&sb, "<p><b>Sagsoplysninger</b></p>\n<p><strong>%s - </strong>%s<br><strong>CPR: </strong>%s<br>",
		c.TreatmentType, c.TreatmentDate, c.CPR)
	if strings.Contains(strings.ToLower(c.TreatmentType), "fod") {
		fmt.Fprintf(&sb, "<strong>Sygesikringsandel: </strong>%t<br><strong>Ydernummer: </strong>%t<br>",
			c.HasSygesikringsandel, c.HasYdernummer)
	}
	fmt.Fprintf(&sb, "<strong>Fundet helbredsprocent: </strong>%.0f%%<br><strong>Fundet sygesikring danmark: </strong>%s</p>\n",
		output.HealthPct*100, output.InsuranceGroup)

	sb.WriteString("<p><b>Behandlinger</b></p>\n")
	for _, tr := range output.Treatments {
		fmt.Fprintf(&sb, "<p><strong>Behandling: </strong>%s<br><strong>Pris: </strong>%.2f kr", tr.Behandling, tr.Pris)
		if tr.Tilskud != nil {
			fmt.Fprintf(&sb, "<br><strong>Sygesikring Danmark tilskud: </strong>%.2f kr", *tr.Tilskud)
		}
		sb.WriteString("</p>\n")
	}

	fmt.Fprintf(&sb, "<p><strong>Beregnet tilskud: </strong>%.2f kr</p>", output.TotalPrice)

	return mailBody(sb.String()), nil
}
