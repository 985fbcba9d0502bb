package datafordeler

import (
	"regexp"
	"strings"
)

// Address is a CPR address record.
type Address struct {
	Vejadresseringsnavn string `json:"vejadresseringsnavn"`
	Husnummer           string `json:"husnummer"`
	Postnummer          string `json:"postnummer"`
	Postdistrikt        string `json:"postdistrikt"`
	Etage               string `json:"etage"`
	Sidedoer            string `json:"sidedoer"`
	Bynavn              string `json:"bynavn"`
}

var (
	leadingZeros = regexp.MustCompile(`^0+`)
	floorPattern = regexp.MustCompile(`^0*(.+)$`)
)

// Format renders the address on a single line on the form
// "Street Name Nr, Floor Door, Zip City", following danmarksadresser.dk
// conventions. House numbers lose their zero padding ("005C" becomes "5C")
// and floors get a trailing dot ("02" becomes "2.", "st" becomes "st.").
func (a *Address) Format() string {
	streetNr := leadingZeros.ReplaceAllString(a.Husnummer, "")
	street := strings.TrimSpace(a.Vejadresseringsnavn + " " + streetNr)

	floor := ""
	if a.Etage != "" {
		floor = floorPattern.ReplaceAllString(a.Etage, "$1.")
	}
	floorAndDoor := joinNonEmpty(" ", floor, a.Sidedoer)

	cityLine := strings.TrimSpace(a.Postnummer + " " + a.Postdistrikt)

	return joinNonEmpty(", ", street, floorAndDoor, cityLine)
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
