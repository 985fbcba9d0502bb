// Package invoice extracts metadata and line items from OIOUBL XML invoices.
// The JSON keys are Danish because downstream desktop flows consume the
// output verbatim.
package invoice

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Item is a single invoice line.
type Item struct {
	VareNr          string  `json:"vare_nr"`
	Beskrivelse     string  `json:"beskrivelse"`
	VareBeskrivelse string  `json:"vare_beskrivelse"`
	Note            string  `json:"note"`
	Antal           float64 `json:"antal"`
	Enhed           string  `json:"enhed"`
	Enhedspris      float64 `json:"enhedspris"`
	Moms            float64 `json:"moms"`
	Pris            float64 `json:"pris"`
}

// Metadata describes the invoice as a whole.
type Metadata struct {
	FakturaNr        string  `json:"faktura_nr"`
	Leverandor       string  `json:"leverandør"`
	CVR              string  `json:"cvr"`
	CPR              string  `json:"cpr"`
	Forfaldsdato     string  `json:"forfaldsdato"`
	TotalBelob       float64 `json:"total_beløb"`
	MomsBelob        float64 `json:"moms_beløb"`
	AntalEnhederIAlt int     `json:"antal_enheder_i_alt"`
	Ydelse           string  `json:"ydelse"`
	YdelseNr         *int    `json:"ydelse_nr"`
	YdelseTidspunkt  string  `json:"ydelse_tidspunkt"`
	YdelseLokation   string  `json:"ydelse_lokation"`
}

var (
	ydelsePattern    = regexp.MustCompile(`Ydelser:\s*([^|]+)`)
	lokationPattern  = regexp.MustCompile(`Lokation:{1,2}\s*(.+?)\.`)
	tidspunktPattern = regexp.MustCompile(`Tidspunkt:{1,2}\s*(\d{2}-\d{2}-\d{4})`)
)

// ParseFile reads and parses an OIOUBL invoice file.
func ParseFile(path string) (*Metadata, []Item, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, nil, fmt.Errorf("read invoice %s: %w", path, err)
	}
	return Parse(doc)
}

// Parse extracts metadata and line items from a parsed invoice document.
// Element lookup goes by local name so the parser works regardless of the
// namespace prefixes the sender chose.
func Parse(doc *etree.Document) (*Metadata, []Item, error) {
	root := doc.Root()
	if root == nil {
		return nil, nil, fmt.Errorf("invoice document is empty")
	}

	var items []Item
	totalUnits := 0
	for _, line := range root.FindElements(".//InvoiceLine") {
		item, err := parseLine(line)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, *item)
		totalUnits += int(item.Antal)
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("invoice has no lines")
	}

	meta, err := parseMetadata(root, items)
	if err != nil {
		return nil, nil, err
	}
	meta.AntalEnhederIAlt = totalUnits

	return meta, items, nil
}

func parseLine(line *etree.Element) (*Item, error) {
	quantity := line.FindElement("InvoicedQuantity")
	if quantity == nil {
		return nil, fmt.Errorf("invoice line without quantity")
	}

	antal, err := parseAmount(quantity.Text())
	if err != nil {
		return nil, fmt.Errorf("invoice line quantity: %w", err)
	}
	enhedspris, err := requiredAmount(line, ".//Price//PriceAmount")
	if err != nil {
		return nil, err
	}
	moms, err := requiredAmount(line, ".//TaxTotal//TaxAmount")
	if err != nil {
		return nil, err
	}
	pris, err := requiredAmount(line, "LineExtensionAmount")
	if err != nil {
		return nil, err
	}

	return &Item{
		VareNr:          findText(line, ".//SellersItemIdentification//ID"),
		Beskrivelse:     findText(line, ".//Item//Name"),
		VareBeskrivelse: findText(line, ".//Item//Description"),
		Note:            findText(line, ".//Note"),
		Antal:           antal,
		Enhed:           quantity.SelectAttrValue("unitCode", ""),
		Enhedspris:      enhedspris,
		Moms:            moms,
		Pris:            pris,
	}, nil
}

func parseMetadata(root *etree.Element, items []Item) (*Metadata, error) {
	// Every line carries the same service note, so the first one will do.
	ydelse := ydelsePattern.FindStringSubmatch(items[0].Note)
	if ydelse == nil {
		return nil, fmt.Errorf("no service name in line note %q", items[0].Note)
	}

	// Time and location live in the invoice-level note, which uses either
	// "Lokation:" or "Lokation::".
	extraInfo := findText(root, ".//Note")
	if extraInfo == "" {
		return nil, fmt.Errorf("invoice has no note with service details")
	}
	lokation := lokationPattern.FindStringSubmatch(extraInfo)
	if lokation == nil {
		return nil, fmt.Errorf("no location in invoice note %q", extraInfo)
	}
	tidspunkt := tidspunktPattern.FindStringSubmatch(extraInfo)
	if tidspunkt == nil {
		return nil, fmt.Errorf("no date in invoice note %q", extraInfo)
	}

	totalBelob, err := requiredAmount(root, ".//PayableAmount")
	if err != nil {
		return nil, err
	}
	momsBelob, err := requiredAmount(root, ".//TaxTotal//TaxAmount")
	if err != nil {
		return nil, err
	}

	// The customer contact ID is "cpr,name".
	cpr, _, _ := strings.Cut(findText(root, ".//AccountingCustomerParty//Contact//ID"), ",")

	return &Metadata{
		FakturaNr:       findText(root, ".//ID"),
		Leverandor:      findText(root, ".//AccountingSupplierParty//Name"),
		CVR:             findText(root, ".//AccountingSupplierParty//CompanyID"),
		CPR:             cpr,
		Forfaldsdato:    findText(root, ".//PaymentDueDate"),
		TotalBelob:      totalBelob,
		MomsBelob:       momsBelob,
		Ydelse:          strings.TrimSpace(ydelse[1]),
		YdelseTidspunkt: tidspunkt[1],
		YdelseLokation:  lokation[1],
	}, nil
}

func findText(el *etree.Element, path string) string {
	found := el.FindElement(path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

func requiredAmount(el *etree.Element, path string) (float64, error) {
	found := el.FindElement(path)
	if found == nil {
		return 0, fmt.Errorf("missing amount element %s", path)
	}
	v, err := parseAmount(found.Text())
	if err != nil {
		return 0, fmt.Errorf("amount %s: %w", path, err)
	}
	return v, nil
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not finite", s)
	}
	return v, nil
}
