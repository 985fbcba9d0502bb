package invoice

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceXML = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2">
  <cbc:ID>12345</cbc:ID>
  <cbc:Note>Lokation::Ringvej 3a, 5800 Nyborg.Tidspunkt:03-06-2025 Kl. 10:30-11:30. Kundereference: XXXXXX-XXXX,Navn</cbc:Note>
  <cac:AccountingSupplierParty>
    <cac:Party>
      <cac:PartyName><cbc:Name>Tolkefirmaet ApS</cbc:Name></cac:PartyName>
      <cac:PartyLegalEntity><cbc:CompanyID>12345678</cbc:CompanyID></cac:PartyLegalEntity>
    </cac:Party>
  </cac:AccountingSupplierParty>
  <cac:AccountingCustomerParty>
    <cac:Party>
      <cac:Contact><cbc:ID>0101805566,Test Person</cbc:ID></cac:Contact>
    </cac:Party>
  </cac:AccountingCustomerParty>
  <cac:PaymentMeans><cbc:PaymentDueDate>2025-07-01</cbc:PaymentDueDate></cac:PaymentMeans>
  <cac:TaxTotal><cbc:TaxAmount currencyID="DKK">125.00</cbc:TaxAmount></cac:TaxTotal>
  <cac:LegalMonetaryTotal>
    <cbc:PayableAmount currencyID="DKK">625.00</cbc:PayableAmount>
  </cac:LegalMonetaryTotal>
  <cac:InvoiceLine>
    <cbc:Note>Foerste Enhed Yderligere oplysninger:  Ydelser: Telefontolkning || Sprog: Ukrainsk ||</cbc:Note>
    <cbc:InvoicedQuantity unitCode="EA">2.0</cbc:InvoicedQuantity>
    <cbc:LineExtensionAmount currencyID="DKK">500.00</cbc:LineExtensionAmount>
    <cac:TaxTotal><cbc:TaxAmount currencyID="DKK">125.00</cbc:TaxAmount></cac:TaxTotal>
    <cac:Item>
      <cbc:Description>Telefontolkning pr. paabegyndt time</cbc:Description>
      <cbc:Name>Tolkning</cbc:Name>
      <cac:SellersItemIdentification><cbc:ID>TLK-1</cbc:ID></cac:SellersItemIdentification>
    </cac:Item>
    <cac:Price><cbc:PriceAmount currencyID="DKK">250.00</cbc:PriceAmount></cac:Price>
  </cac:InvoiceLine>
</Invoice>`

func parseFixture(t *testing.T) (*Metadata, []Item) {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(invoiceXML))
	meta, items, err := Parse(doc)
	require.NoError(t, err)
	return meta, items
}

func TestParseInvoiceLines(t *testing.T) {
	_, items := parseFixture(t)

	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "TLK-1", item.VareNr)
	assert.Equal(t, "Tolkning", item.Beskrivelse)
	assert.Equal(t, "Telefontolkning pr. paabegyndt time", item.VareBeskrivelse)
	assert.Equal(t, 2.0, item.Antal)
	assert.Equal(t, "EA", item.Enhed)
	assert.Equal(t, 250.0, item.Enhedspris)
	assert.Equal(t, 125.0, item.Moms)
	assert.Equal(t, 500.0, item.Pris)
}

func TestParseInvoiceMetadata(t *testing.T) {
	meta, _ := parseFixture(t)

	assert.Equal(t, "12345", meta.FakturaNr)
	assert.Equal(t, "Tolkefirmaet ApS", meta.Leverandor)
	assert.Equal(t, "12345678", meta.CVR)
	assert.Equal(t, "0101805566", meta.CPR)
	assert.Equal(t, "2025-07-01", meta.Forfaldsdato)
	assert.Equal(t, 625.0, meta.TotalBelob)
	assert.Equal(t, 125.0, meta.MomsBelob)
	assert.Equal(t, 2, meta.AntalEnhederIAlt)
	assert.Equal(t, "Telefontolkning", meta.Ydelse)
	assert.Equal(t, "03-06-2025", meta.YdelseTidspunkt)
	assert.Equal(t, "Ringvej 3a, 5800 Nyborg", meta.YdelseLokation)
	assert.Nil(t, meta.YdelseNr)
}

func TestParseInvoiceWithoutLines(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<Invoice><ID>1</ID></Invoice>`))

	_, _, err := Parse(doc)
	assert.ErrorContains(t, err, "no lines")
}
