package credstore

import (
	"strings"
	"testing"

	"github.com/nyborg-rpa/rpa-core/internal/config"
)

func TestLoginQuery(t *testing.T) {
	s := &Store{cfg: &config.CredStoreConfig{
		SymKey: "RobotKey",
		Cert:   "RobotCert",
		Table:  "dbo.Logins",
	}}

	query := s.loginQuery()
	for _, want := range []string{
		"OPEN SYMMETRIC KEY RobotKey DECRYPTION BY CERTIFICATE RobotCert;",
		"DecryptByKey(Password)",
		"FROM dbo.Logins;",
		"CLOSE SYMMETRIC KEY RobotKey;",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
}

func TestOpenRequiresServerAndDatabase(t *testing.T) {
	if _, err := Open(&config.CredStoreConfig{Server: "sql01"}); err == nil {
		t.Error("expected error without database")
	}
}
