package jobs

import (
	"net/url"
	"testing"
)

func TestResidencyParams(t *testing.T) {
	q := residencyParams(url.Values{})
	if q.Get("cadr.cprkommunekode.eq") != "450" {
		t.Errorf("kommunekode = %q", q.Get("cadr.cprkommunekode.eq"))
	}
	if q.Get("adropl.fraflytningskommunekode.ne") != "450" {
		t.Errorf("fraflytningskommunekode = %q", q.Get("adropl.fraflytningskommunekode.ne"))
	}
	if q.Get("person.status.wi") != "bopael_i_danmark|bopael_i_danmark_hoej_vejkode" {
		t.Errorf("status = %q", q.Get("person.status.wi"))
	}
}

func TestCoupleKey(t *testing.T) {
	// Both spouses map to the same key.
	if coupleKey("0101601234", "0202605678") != coupleKey("0202605678", "0101601234") {
		t.Error("couple key should be order independent")
	}
	if coupleKey("0101601234", "") != "0101601234" {
		t.Errorf("key without partner = %q", coupleKey("0101601234", ""))
	}
}
