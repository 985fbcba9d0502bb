package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/connector/nexus"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// rpaSiteURL is the SharePoint site that holds the robot's work lists.
const rpaSiteURL = "https://nyborg365.sharepoint.com/sites/RPADrift"

const (
	// medcomKeywordList holds the nutrition-related search words. Its Udslag
	// column counts how often each word has matched.
	medcomKeywordList = "01.53.02 Ernæringsord liste"
	// medcomProcessedList logs every scanned letter by Medcom id. The double
	// space is in the actual list name.
	medcomProcessedList = "01.53.01  Sundhed og Ældre - Diætist - Medcom scanner"
)

// medcomActivities are the activity lists that receive Medcom letters from
// the hospitals.
var medcomActivities = []string{"Udskrivningsrapport", "Plejeforløbsplaner"}

// medcomScanWindow is how far back the scan looks for letters.
const medcomScanWindow = 30 * 24 * time.Hour

// homecareOrgName is the organization subtree whose districts the scan
// reports on.
const homecareOrgName = "Hjemmepleje"

// homecareDistricts are the expected districts under Hjemmepleje. Only the
// active ones count when resolving a citizen's district; the rest exist so a
// reorganization is caught as a hard error instead of silent misattribution.
var homecareDistricts = map[string]bool{
	"Distrikt Aften By":      false,
	"Distrikt Aften Land":    false,
	"Distrikt Egepark":       true,
	"Distrikt Egevang":       true,
	"Distrikt Nat":           false,
	"Distrikt Rosengård":     true,
	"Distrikt Svanedam Vest": true,
	"Distrikt Svanedam Øst":  true,
	"E-distrikt.":            false,
	"Private leverandører":   false,
}

func init() {
	job.Register(&job.Definition{
		Name:        "dietist-medcom-scan",
		Description: "Scan incoming Medcom letters for nutrition-related keywords and report matches",
		Run:         runDietistMedcomScan,
	})
}

// medcomMatch is a scanned letter that contained at least one keyword.
type medcomMatch struct {
	nexus.MedcomLetter
	Keywords []string
	District string
}

func runDietistMedcomScan(ctx context.Context, params job.Params) (any, error) {
	recipientsParam, err := params.String("recipients")
	if err != nil {
		return nil, err
	}
	recipients, err := splitRecipients(recipientsParam)
	if err != nil {
		return nil, err
	}

	nx, err := newNexusClient(ctx)
	if err != nil {
		return nil, err
	}
	gc, graphCfg, err := newGraphClient(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("fetching organization tree")
	tree, err := nx.OrganizationTree(ctx)
	if err != nil {
		return nil, err
	}
	homecare := tree.Subtree(homecareOrgName)
	if homecare == nil {
		return nil, fmt.Errorf("organization %q not found in tree", homecareOrgName)
	}
	if err := validateHomecareDistricts(homecare.Children); err != nil {
		return nil, err
	}

	log.Printf("fetching sharepoint lists")
	keywordList, err := gc.SharePointList(ctx, rpaSiteURL, medcomKeywordList)
	if err != nil {
		return nil, err
	}
	keywordItems, err := keywordList.Items(ctx)
	if err != nil {
		return nil, err
	}
	processedList, err := gc.SharePointList(ctx, rpaSiteURL, medcomProcessedList)
	if err != nil {
		return nil, err
	}
	processedItems, err := processedList.Items(ctx)
	if err != nil {
		return nil, err
	}

	processed := make(map[string]bool, len(processedItems))
	for i := range processedItems {
		processed[processedItems[i].FieldString("Title")] = true
	}

	to := time.Now()
	from := to.Add(-medcomScanWindow)

	var letters []nexus.MedcomLetter
	for _, activity := range medcomActivities {
		log.Printf("fetching letters for activity %q from %s to %s",
			activity, from.Format("2006-01-02"), to.Format("2006-01-02"))
		found, err := nx.ActivityLetters(ctx, activity, from, to)
		if err != nil {
			return nil, err
		}
		letters = append(letters, found...)
	}

	var matches []medcomMatch
	scanned := 0
	for _, letter := range letters {
		if processed[letter.MedcomID] {
			continue
		}
		scanned++

		log.Printf("scanning letter %s (%s)", letter.MedcomID, letter.Name)
		body, err := nx.LetterContent(ctx, letter.ContentHref)
		if err != nil {
			return nil, err
		}
		body = strings.ToLower(body)

		var keywords []string
		for i := range keywordItems {
			word := strings.ToLower(keywordItems[i].FieldString("Title"))
			if word == "" || !strings.Contains(body, word) {
				continue
			}
			keywords = append(keywords, word)
			hits := keywordItems[i].FieldInt("Udslag") + 1
			if err := keywordList.UpdateItemFields(ctx, keywordItems[i].ID, map[string]any{"Udslag": hits}); err != nil {
				return nil, err
			}
			keywordItems[i].Fields["Udslag"] = hits
		}

		err = processedList.AddItem(ctx, map[string]any{
			"Title":           letter.MedcomID,
			"Aktivitetsliste": letter.Name,
			"Match":           len(keywords) > 0,
			"Status":          "Completed",
			"Dato":            letter.Date.Format("2006-01-02T15:04:05Z"),
		})
		if err != nil {
			return nil, err
		}

		if len(keywords) == 0 {
			continue
		}

		orgs, err := nx.PatientOrganizations(ctx, letter.PatientID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, medcomMatch{
			MedcomLetter: letter,
			Keywords:     keywords,
			District:     homecareDistrict(orgs, homecare.Children),
		})
	}

	if len(matches) > 0 {
		log.Printf("sending report for %d matching letters", len(matches))
		nexusCfg := config.LoadNexusConfig()
		body := mailBody(fmt.Sprintf(
			"<p>Robotten har netop scannet nye breve og identificeret relevante ord i følgende dokumenter:</p>\n%s",
			medcomReportTable(matches, citizenBaseURL(nexusCfg))))

		err = gc.SendMail(ctx, &graph.Mail{
			Sender:     graphCfg.Mailbox,
			Recipients: recipients,
			Subject:    "Rapport: Fund af ernæringsrelaterede ord",
			Body:       body,
		})
		if err != nil {
			return nil, err
		}
	}

	return map[string]any{"scanned": scanned, "matched": len(matches)}, nil
}

// citizenBaseURL is the browser URL prefix for a citizen in Nexus.
func citizenBaseURL(cfg *config.NexusConfig) string {
	return fmt.Sprintf("https://%s.%s.kmd.dk/citizen/", cfg.Instance, cfg.Environment)
}

// validateHomecareDistricts checks that the district nodes match the expected
// set exactly. Any difference means the organization changed and the district
// table needs maintenance.
func validateHomecareDistricts(districts []nexus.OrgNode) error {
	var mismatched []string
	seen := make(map[string]bool, len(districts))
	for i := range districts {
		seen[districts[i].Name] = true
		if _, ok := homecareDistricts[districts[i].Name]; !ok {
			mismatched = append(mismatched, districts[i].Name)
		}
	}
	for name := range homecareDistricts {
		if !seen[name] {
			mismatched = append(mismatched, name)
		}
	}
	if len(mismatched) > 0 {
		sort.Strings(mismatched)
		return fmt.Errorf("mismatched districts: %s", strings.Join(mismatched, ", "))
	}
	return nil
}

// homecareDistrict resolves the district a citizen belongs to. A citizen maps
// to a district when a present organization relation sits in that district's
// subtree. Anything but exactly one active district comes back as "Ukendt".
func homecareDistrict(orgs []nexus.PatientOrg, districts []nexus.OrgNode) string {
	found := make(map[string]bool)
	for _, org := range orgs {
		if !org.EffectiveAtPresent {
			continue
		}
		for i := range districts {
			if districts[i].Contains(org.ID.String()) {
				found[districts[i].Name] = true
				break
			}
		}
	}

	var active []string
	for name := range found {
		if homecareDistricts[name] {
			active = append(active, name)
		}
	}
	if len(active) == 1 {
		return active[0]
	}
	return "Ukendt"
}

// medcomReportTable renders the matching letters grouped by district, each
// group sorted by patient id and newest letter first.
func medcomReportTable(matches []medcomMatch, citizenBase string) string {
	byDistrict := make(map[string][]medcomMatch)
	for _, m := range matches {
		byDistrict[m.District] = append(byDistrict[m.District], m)
	}

	districts := make([]string, 0, len(byDistrict))
	for name := range byDistrict {
		districts = append(districts, name)
	}
	sort.Strings(districts)

	var sb strings.Builder
	sb.WriteString("<table border=\"1\"><tr>")
	for _, h := range []string{"Emne", "Dato", "Patient ID", "Link", "Nøgleord"} {
		fmt.Fprintf(&sb, "<th>%s</th>", h)
	}
	sb.WriteString("</tr>")

	for _, district := range districts {
		fmt.Fprintf(&sb, "<tr><td colspan=\"5\"><b>%s</b></td></tr>", district)

		group := byDistrict[district]
		sort.Slice(group, func(i, j int) bool {
			if group[i].PatientID != group[j].PatientID {
				return group[i].PatientID < group[j].PatientID
			}
			return group[i].Date.After(group[j].Date)
		})

		for _, m := range group {
			fmt.Fprintf(&sb,
				"<tr><td>%s</td><td>%s</td><td>%s</td><td><a href=\"%s%s/correspondence/inbox\">Åbn indbakke</a></td><td>%s</td></tr>",
				m.Name, m.Date.Format("2006-01-02 15:04:05"), m.PatientID,
				citizenBase, m.PatientID, strings.Join(m.Keywords, ", "))
		}
	}

	sb.WriteString("</table>")
	return sb.String()
}
