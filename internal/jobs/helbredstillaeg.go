package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// defaultHelbredDataDir is where the desktop flow drops the collected case
// files, one subdirectory per SharePoint item.
const defaultHelbredDataDir = `J:/Drift/11. Helbredstillæg`

func init() {
	job.Register(&job.Definition{
		Name:        "calculate-helbredstillaeg",
		Description: "Calculate the health allowance for a SharePoint treatment request",
		Run:         runCalculateHelbredstillaeg,
	})
}

// =============================================================================
// TYPES
// =============================================================================

// treatmentLine is one treatment on the request with its price.
type treatmentLine struct {
	Behandling string  `json:"Behandling"`
	Pris       float64 `json:"Pris"`
}

// catalogTreatment is a row of the SharePoint treatment catalogue: the
// insurance share and maximum for a treatment in a given year.
type catalogTreatment struct {
	Form     string
	Name     string
	MaxPrice float64
	Percent  float64
	Year     string
	Groups   []string
}

// allowancePeriod is a validity window for the citizen's health allowance
// percentage from KP pensionsfakta.
type allowancePeriod struct {
	From time.Time
	To   time.Time
	Pct  float64
}

// kpCase is a case from the KP case overview.
type kpCase struct {
	Titel    string     `json:"Titel"`
	Sagstype string     `json:"Sagstype"`
	Start    *time.Time `json:"Beviling start"`
	End      *time.Time `json:"Beviling slut"`
	Status   string     `json:"Status"`
}

// payout is a historical payment from KP.
type payout struct {
	Name   string
	Amount float64
}

// helbredRequest is everything the calculation needs, assembled from the
// collected case files.
type helbredRequest struct {
	TreatmentDate        time.Time
	TreatmentType        string
	HasYdernummer        bool
	HasSygesikringsandel bool
	Treatments           []treatmentLine
	InsuranceText        string
	Catalog              []catalogTreatment
	AllowancePeriods     []allowancePeriod
	Cases                []kpCase
	Payouts              []payout
}

// helbredResult is the verdict returned to the desktop flow.
type helbredResult struct {
	Status         bool    `json:"status"`
	StatusMessage  string  `json:"status_message"`
	TotalPrice     float64 `json:"total_price"`
	HealthPct      float64 `json:"health_pct"`
	InsuranceGroup string  `json:"insurance_group_denmark"`
	Extended       bool    `json:"extended"`
	FoundCase      *kpCase `json:"found_cases,omitempty"`
}

// =============================================================================
// JOB
// =============================================================================

func runCalculateHelbredstillaeg(ctx context.Context, params job.Params) (any, error) {
	sharepointID, err := params.Int("sharepoint-id")
	if err != nil {
		return nil, err
	}
	dataDir := params.StringOr("data-dir", defaultHelbredDataDir)

	request, err := loadHelbredRequest(filepath.Join(dataDir, strconv.Itoa(sharepointID)))
	if err != nil {
		return nil, err
	}

	return calculateHelbredstillaeg(request, time.Now())
}

// parseMedicalInsurance maps the free-text Sygeforsikring danmark field to a
// membership group. "Ja - Basis (hvilende)" counts as no membership.
func parseMedicalInsurance(text string) string {
	mapping := []struct{ name, group string }{
		{"Gruppe 1", "Gruppe 1"},
		{"Gruppe 2", "Gruppe 2"},
		{"Gruppe 5", "Gruppe 5"},
		{"Ja - Basis (hvilende)", "Ikke medlem"},
		{"Nej", "Ikke medlem"},
	}
	lower := strings.ToLower(text)
	for _, m := range mapping {
		if strings.Contains(lower, strings.ToLower(m.name)) {
			return m.group
		}
	}
	return "Ukendt"
}

func calculateHelbredstillaeg(req *helbredRequest, now time.Time) (*helbredResult, error) {
	result := &helbredResult{}
	fail := func(msg string) (*helbredResult, error) {
		result.StatusMessage = msg
		log.Printf("failed: %s", msg)
		return result, nil
	}

	log.Printf("checking treatment date")
	if req.TreatmentDate.After(now) {
		return fail("Behandlingsdato er i fremtiden!")
	}
	if req.TreatmentDate.Before(now.AddDate(-3, 0, 0)) {
		return fail("Behandlingsdato er ældre end 3 år!")
	}

	log.Printf("checking medical insurance group")
	group := parseMedicalInsurance(req.InsuranceText)
	result.InsuranceGroup = group
	if group == "Ukendt" {
		return fail("Kunne ikke finde borgers Sygesikring Danmark medlemsstatus")
	}

	// Sum treatment prices and subtract the insurance share for treatments
	// the citizen's group is covered for.
	log.Printf("checking payment")
	year := strconv.Itoa(req.TreatmentDate.Year())
	for _, treatment := range req.Treatments {
		result.TotalPrice += treatment.Pris

		// Foot treatment without a provider number carries no insurance share.
		if treatment.Behandling == "Fodbehandling" && !req.HasYdernummer {
			continue
		}

		entry, err := findCatalogTreatment(req.Catalog, req.TreatmentType, treatment.Behandling, year)
		if err != nil {
			return nil, err
		}

		if !containsString(entry.Groups, group) {
			continue
		}
		insurancePart := math.Min(treatment.Pris*entry.Percent, entry.MaxPrice)
		result.TotalPrice -= insurancePart
	}

	// Apply the allowance percentage valid on the treatment date.
	for _, period := range req.AllowancePeriods {
		if !req.TreatmentDate.Before(period.From) && !req.TreatmentDate.After(period.To) {
			result.HealthPct = period.Pct
			break
		}
	}
	result.TotalPrice = math.Ceil(result.TotalPrice*result.HealthPct*100) / 100
	log.Printf("calculated total price: %.2f", result.TotalPrice)

	if result.TotalPrice == 0 {
		return fail("Borgers helbredsprocent er 0")
	}

	// Pick the case search keywords and the verdict for the treatment type.
	var treatmentKeywords []string
	var caseKeyword, action string
	switch req.TreatmentType {
	case "Fodbehandling":
		treatmentKeywords = []string{"fodb", "fodp"}
		caseKeyword = "almindeligt helbredstillæg"
		if !req.HasSygesikringsandel {
			caseKeyword = "udvidet helbredstillæg"
			result.Extended = true
		}
		extended := caseKeyword == "udvidet helbredstillæg"
		if extended != req.HasSygesikringsandel {
			action = "Standard"
		} else {
			action = "Manuel"
		}
	case "Tandbehandling":
		treatmentKeywords = []string{"tand"}
		caseKeyword = "almindeligt helbredstillæg"
		action = "Standard"
	default:
		return nil, fmt.Errorf("unknown treatment type %q", req.TreatmentType)
	}

	log.Printf("checking for available case")
	foundCase := findCase(req.Cases, treatmentKeywords, caseKeyword, req.TreatmentDate)
	if foundCase == nil {
		return fail("Der er ikke fundet en sag for behandlingen")
	}

	log.Printf("checking previous payment")
	for _, p := range req.Payouts {
		if !containsAny(strings.ToLower(p.Name), treatmentKeywords) {
			continue
		}
		payoutDate, ok := findDateInText(p.Name)
		if !ok {
			if result.TotalPrice != p.Amount {
				continue
			}
			return fail("Måske tidligere udbetalt")
		}
		if !payoutDate.Equal(req.TreatmentDate) {
			continue
		}
		return fail("Tidligere udbetalt")
	}

	result.StatusMessage = action
	result.Status = action != "Manuel"
	if action == "Manuel" {
		result.TotalPrice = 0
	}
	result.FoundCase = foundCase

	if !result.Status {
		log.Printf("failed: %s", result.StatusMessage)
	}
	return result, nil
}

// findCatalogTreatment requires exactly one catalogue row for the treatment
// in the given year.
func findCatalogTreatment(catalog []catalogTreatment, form, name, year string) (*catalogTreatment, error) {
	var matches []*catalogTreatment
	for i := range catalog {
		t := &catalog[i]
		if t.Form == form && t.Name == name && t.Year == year {
			matches = append(matches, t)
		}
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("der er ikke præcist ét match for behandlingen %s i år %s, fundet: %d",
			name, year, len(matches))
	}
	return matches[0], nil
}

// findCase returns the first KP case whose title and type match the keywords
// and whose grant window contains the treatment date.
func findCase(cases []kpCase, titleKeywords []string, typeKeyword string, date time.Time) *kpCase {
	for i := range cases {
		c := &cases[i]
		if !containsAny(strings.ToLower(c.Titel), titleKeywords) {
			continue
		}
		if !strings.Contains(strings.ToLower(c.Sagstype), typeKeyword) {
			continue
		}
		if c.Start == nil || !c.Start.Before(date) {
			continue
		}
		if c.End != nil && !c.End.After(date) {
			continue
		}
		return c
	}
	return nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// payoutDatePattern finds a day-month-year date anywhere in a payout name,
// with -, . or / separators (or none) and two- or four-digit years.
var payoutDatePattern = regexp.MustCompile(`(\d{2})([-./]?)(\d{2})[-./]?(\d{4}|\d{2})`)

func findDateInText(text string) (time.Time, bool) {
	m := payoutDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[4])
	if len(m[4]) == 2 {
		year += 2000
		if year > time.Now().Year() {
			year -= 100
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}

// parsePayoutAmount parses a Danish "1.234,56 kr." amount.
func parsePayoutAmount(text string) (float64, error) {
	s := strings.NewReplacer("\u00a0kr.", "", " kr.", "", "kr.", "", ".", "", ",", ".").Replace(text)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse payout amount %q: %w", text, err)
	}
	return v, nil
}

// =============================================================================
// FILE LOADING
// =============================================================================

// loadHelbredRequest reads the case files the desktop flow collected from
// SharePoint and KP.
func loadHelbredRequest(dir string) (*helbredRequest, error) {
	var item struct {
		Behandlingsdato string `json:"Behandlingsdato"`
		Behandlingsform struct {
			Value string `json:"Value"`
		} `json:"Behandlingsform"`
		Behandlinger         string `json:"Behandlinger"`
		HasYdernummer        bool   `json:"HarYdernummer_x003f_"`
		HasSygesikringsandel bool   `json:"HarSygesikringsandel_x003f_"`
	}
	if err := readJSONFile(filepath.Join(dir, "sharepoint.json"), &item); err != nil {
		return nil, err
	}

	treatmentDate, err := time.Parse("2006-01-02", item.Behandlingsdato)
	if err != nil {
		return nil, fmt.Errorf("parse treatment date %q: %w", item.Behandlingsdato, err)
	}

	// Behandlinger is a JSON document embedded in a string field.
	var treatments []treatmentLine
	if err := json.Unmarshal([]byte(item.Behandlinger), &treatments); err != nil {
		return nil, fmt.Errorf("parse treatments: %w", err)
	}

	var catalogFile struct {
		Value []struct {
			Behandlingsform struct {
				Value string `json:"Value"`
			} `json:"Behandlingsform"`
			Behandling string  `json:"Behandling"`
			MaksPris   float64 `json:"MaksPris"`
			Procent    float64 `json:"Procent"`
			Year       struct {
				Value string `json:"Value"`
			} `json:"OData__x00c5_r"`
			Grupper []struct {
				Value string `json:"Value"`
			} `json:"Grupper"`
		} `json:"value"`
	}
	if err := readJSONFile(filepath.Join(dir, "sharepoint_treatments.json"), &catalogFile); err != nil {
		return nil, err
	}
	var catalog []catalogTreatment
	for _, row := range catalogFile.Value {
		entry := catalogTreatment{
			Form:     row.Behandlingsform.Value,
			Name:     row.Behandling,
			MaxPrice: row.MaksPris,
			Percent:  row.Procent,
			Year:     row.Year.Value,
		}
		for _, g := range row.Grupper {
			entry.Groups = append(entry.Groups, g.Value)
		}
		catalog = append(catalog, entry)
	}

	var personoplysninger map[string]string
	if err := readJSONFile(filepath.Join(dir, "kp_personoplysninger.json"), &personoplysninger); err != nil {
		return nil, err
	}

	var pensionsfakta struct {
		Periods []struct {
			From string `json:"Gyldig_Fra"`
			To   string `json:"Gyldig_Til"`
			Pct  string `json:"Helbredsprocent"`
		} `json:"Helbredstillægsprocent"`
	}
	if err := readJSONFile(filepath.Join(dir, "kp_pensionsfakta.json"), &pensionsfakta); err != nil {
		return nil, err
	}
	var periods []allowancePeriod
	for _, p := range pensionsfakta.Periods {
		from, err := time.Parse("02-01-2006", p.From)
		if err != nil {
			return nil, fmt.Errorf("parse allowance period start %q: %w", p.From, err)
		}
		to, err := time.Parse("02-01-2006", p.To)
		if err != nil {
			return nil, fmt.Errorf("parse allowance period end %q: %w", p.To, err)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(p.Pct), "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("parse allowance percent %q: %w", p.Pct, err)
		}
		periods = append(periods, allowancePeriod{From: from, To: to, Pct: pct / 100})
	}

	var caseFile []struct {
		Titel    string `json:"Titel"`
		Sagstype string `json:"Sagstype"`
		Start    string `json:"Beviling start"`
		End      string `json:"Beviling slut"`
		Status   string `json:"Status"`
	}
	if err := readJSONFile(filepath.Join(dir, "kp_sagsoversigt.json"), &caseFile); err != nil {
		return nil, err
	}
	var cases []kpCase
	for _, row := range caseFile {
		cases = append(cases, kpCase{
			Titel:    row.Titel,
			Sagstype: row.Sagstype,
			Start:    parseOptionalDate(row.Start),
			End:      parseOptionalDate(row.End),
			Status:   row.Status,
		})
	}

	var payoutFile []struct {
		Navn  string `json:"Navn"`
		Belob string `json:"Beløb"`
	}
	if err := readJSONFile(filepath.Join(dir, "kp_udbetaling.json"), &payoutFile); err != nil {
		return nil, err
	}
	var payouts []payout
	for _, row := range payoutFile {
		amount, err := parsePayoutAmount(row.Belob)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, payout{Name: row.Navn, Amount: amount})
	}

	return &helbredRequest{
		TreatmentDate:        treatmentDate,
		TreatmentType:        item.Behandlingsform.Value,
		HasYdernummer:        item.HasYdernummer,
		HasSygesikringsandel: item.HasSygesikringsandel,
		Treatments:           treatments,
		InsuranceText:        personoplysninger["Sygeforsikring danmark (gruppe)"],
		Catalog:              catalog,
		AllowancePeriods:     periods,
		Cases:                cases,
		Payouts:              payouts,
	}, nil
}

// parseOptionalDate parses a yyyy-mm-dd date, returning nil when the field is
// empty or malformed.
func parseOptionalDate(s string) *time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

// readJSONFile reads a JSON file, tolerating a UTF-8 BOM.
func readJSONFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
