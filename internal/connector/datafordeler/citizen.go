package datafordeler

import (
	"encoding/json"
	"fmt"
	"time"
)

// person mirrors the parts of the CPR person record the jobs consume.
// Every sub-record is wrapped in a named envelope and carries its own status.
type person struct {
	Foedselsdato string `json:"foedselsdato"`

	Personnumre []struct {
		Personnummer struct {
			Personnummer string `json:"personnummer"`
			Status       string `json:"status"`
		} `json:"Personnummer"`
	} `json:"Personnumre"`

	Navne []struct {
		Navn struct {
			Fornavne  string `json:"fornavne"`
			Efternavn string `json:"efternavn"`
			Status    string `json:"status"`
		} `json:"Navn"`
	} `json:"Navne"`

	Adresseoplysninger []struct {
		Adresseoplysninger struct {
			CprAdresse *Address `json:"CprAdresse"`
		} `json:"Adresseoplysninger"`
	} `json:"Adresseoplysninger"`

	Civilstande []struct {
		Civilstand struct {
			Civilstandstype string `json:"Civilstandstype"`
			Status          string `json:"status"`
			VirkningFra     string `json:"virkningFra"`
			Aegtefaelle     *struct {
				AegtefaellePersonnummer string `json:"aegtefaellePersonnummer"`
			} `json:"Aegtefaelle"`
		} `json:"Civilstand"`
	} `json:"Civilstande"`
}

// Citizen is the distilled set of current facts about a person.
type Citizen struct {
	CPR            string
	Name           string
	Address        string
	Birthday       time.Time
	CivilStatus    string
	CivilValidFrom time.Time
	PartnerCPR     string
}

// Citizens extracts the current facts from raw person records as returned by
// GetPersons.
func Citizens(persons []json.RawMessage) ([]Citizen, error) {
	citizens := make([]Citizen, 0, len(persons))
	for _, raw := range persons {
		var p person
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse person record: %w", err)
		}

		c, err := citizenFromPerson(&p)
		if err != nil {
			return nil, err
		}
		citizens = append(citizens, *c)
	}
	return citizens, nil
}

func citizenFromPerson(p *person) (*Citizen, error) {
	c := &Citizen{}

	for _, nr := range p.Personnumre {
		if nr.Personnummer.Status == "aktuel" {
			c.CPR = nr.Personnummer.Personnummer
			break
		}
	}
	if c.CPR == "" {
		return nil, fmt.Errorf("person record has no current CPR number")
	}

	for _, n := range p.Navne {
		if n.Navn.Status == "aktuel" {
			c.Name = n.Navn.Fornavne + " " + n.Navn.Efternavn
			break
		}
	}

	for _, a := range p.Adresseoplysninger {
		if a.Adresseoplysninger.CprAdresse != nil {
			c.Address = a.Adresseoplysninger.CprAdresse.Format()
			break
		}
	}

	if p.Foedselsdato != "" {
		birthday, err := time.Parse("2006-01-02", p.Foedselsdato)
		if err != nil {
			return nil, fmt.Errorf("parse birthday %q for %s: %w", p.Foedselsdato, c.CPR, err)
		}
		c.Birthday = birthday
	}

	for _, civ := range p.Civilstande {
		if civ.Civilstand.Status != "aktuel" {
			continue
		}
		c.CivilStatus = civ.Civilstand.Civilstandstype
		if civ.Civilstand.VirkningFra != "" {
			// virkningFra may be a date or a full timestamp
			for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
				if t, err := time.Parse(layout, civ.Civilstand.VirkningFra); err == nil {
					c.CivilValidFrom = t
					break
				}
			}
		}
		if civ.Civilstand.Civilstandstype == "gift" && civ.Civilstand.Aegtefaelle != nil {
			c.PartnerCPR = civ.Civilstand.Aegtefaelle.AegtefaellePersonnummer
		}
		break
	}

	return c, nil
}
