package jobs

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/connector/datafordeler"
	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/excel"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// municipalityCode is Nyborg's CPR municipality code.
const municipalityCode = "450"

// weddingAnniversaries are the anniversaries the municipality congratulates.
var weddingAnniversaries = []int{60, 65, 70, 75, 80}

func init() {
	job.Register(&job.Definition{
		Name:        "anniversary",
		Description: "Report next year's 100-year birthdays and wedding anniversaries",
		Run:         runAnniversary,
	})
}

func runAnniversary(ctx context.Context, params job.Params) (any, error) {
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

	client, err := datafordeler.New(config.LoadDatafordelerConfig())
	if err != nil {
		return nil, err
	}

	year := time.Now().Year() + 1
	hundredYearsFile := filepath.Join(workingDir, "citizens_hundred_years.xlsx")
	weddingFile := filepath.Join(workingDir, "citizens_wedding_anniversary.xlsx")

	if err := writeHundredYearsReport(ctx, client, year, hundredYearsFile); err != nil {
		return nil, err
	}
	if err := writeWeddingReport(ctx, client, year, weddingFile); err != nil {
		return nil, err
	}

	graphClient, graphCfg, err := newGraphClient(ctx)
	if err != nil {
		return nil, err
	}

	body := mailBody(`<p>Vedhæftet finder du <strong>citizens_hundred_years.xlsx</strong> med kommende 100 års fødselsdage og <strong>citizens_wedding_anniversary.xlsx</strong> med bryllup jubilæums.</p>`)
	err = graphClient.SendMail(ctx, &graph.Mail{
		Sender:          graphCfg.Mailbox,
		Recipients:      recipients,
		Subject:         fmt.Sprintf("Levering af filer: %d - 100 år og Bryllup jubilæum", year),
		Body:            body,
		AttachmentPaths: []string{hundredYearsFile, weddingFile},
	})
	if err != nil {
		return nil, err
	}

	// The reports only live until they have been mailed.
	for _, f := range []string{hundredYearsFile, weddingFile} {
		if err := os.Remove(f); err != nil {
			log.Printf("cleanup %s: %v", f, err)
		}
	}

	return map[string]any{"year": year}, nil
}

// residencyParams restrict results to citizens living in the municipality.
func residencyParams(q url.Values) url.Values {
	q.Set("cadr.cprkommunekode.eq", municipalityCode)
	q.Set("adropl.fraflytningskommunekode.ne", municipalityCode)
	q.Set("person.status.wi", "bopael_i_danmark|bopael_i_danmark_hoej_vejkode")
	return q
}

func writeHundredYearsReport(ctx context.Context, client *datafordeler.Client, year int, path string) error {
	log.Printf("fetching citizens turning 100 in %d", year)

	q := residencyParams(url.Values{})
	q.Set("person.foedselsdato.ge", fmt.Sprintf("%d-01-01", year-100))
	q.Set("person.foedselsdato.le", fmt.Sprintf("%d-12-31", year-100))

	persons, err := client.GetPersons(ctx, q)
	if err != nil {
		return err
	}
	citizens, err := datafordeler.Citizens(persons)
	if err != nil {
		return err
	}

	sort.Slice(citizens, func(i, j int) bool {
		a, b := citizens[i].Birthday, citizens[j].Birthday
		if a.Month() != b.Month() {
			return a.Month() < b.Month()
		}
		return a.Day() < b.Day()
	})

	table := &excel.Table{Headers: []string{"Fulde navn", "Adresse", "Fødselsdag", "Personnummer"}}
	for _, c := range citizens {
		birthday := fmt.Sprintf("%d-%s", year, c.Birthday.Format("01-02"))
		table.Rows = append(table.Rows, []any{c.Name, c.Address, birthday, c.CPR})
	}

	return excel.WriteTable(path, "hundred_years", table)
}

func writeWeddingReport(ctx context.Context, client *datafordeler.Client, year int, path string) error {
	table := &excel.Table{Headers: []string{
		"id", "Juilæum", "Vielsesdaton", "Fulde navn", "Adresse", "Fødselsdato", "Personnummer",
	}}

	// Couples get a shared id so both spouses group together in the sheet.
	coupleIDs := make(map[string]int)

	for _, anniversary := range weddingAnniversaries {
		log.Printf("fetching citizens with %d year wedding anniversary in %d", anniversary, year)

		q := residencyParams(url.Values{})
		q.Set("civ.status.eq", "aktuel")
		q.Set("civ.civilstandstype.eq", "gift")
		q.Set("civ.virkningfra.ge", fmt.Sprintf("%d-01-01", year-anniversary))
		q.Set("civ.virkningfra.le", fmt.Sprintf("%d-12-31", year-anniversary))

		persons, err := client.GetPersons(ctx, q)
		if err != nil {
			return err
		}
		citizens, err := datafordeler.Citizens(persons)
		if err != nil {
			return err
		}

		for _, c := range citizens {
			key := coupleKey(c.CPR, c.PartnerCPR)
			id, ok := coupleIDs[key]
			if !ok {
				id = len(coupleIDs)
				coupleIDs[key] = id
			}
			table.Rows = append(table.Rows, []any{
				id,
				fmt.Sprintf("%d år", anniversary),
				c.CivilValidFrom.Format("2006-01-02"),
				c.Name,
				c.Address,
				c.Birthday.Format("2006-01-02"),
				c.CPR,
			})
		}
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i][0].(int) < table.Rows[j][0].(int)
	})

	return excel.WriteTable(path, "wedding_anniversary", table)
}

// coupleKey builds the same key for both spouses by ordering the CPRs.
func coupleKey(cpr, partnerCPR string) string {
	if partnerCPR == "" {
		return cpr
	}
	if partnerCPR < cpr {
		cpr, partnerCPR = partnerCPR, cpr
	}
	return cpr + "|" + partnerCPR
}
