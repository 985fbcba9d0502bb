package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

func testClient(server *httptest.Server) *Client {
	cfg := httpc.DefaultClientConfig()
	cfg.BaseURL = server.URL
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return newWithHTTP(httpc.NewClient(cfg))
}

func TestSubscribedSKUs(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subscribedSkus":
			fmt.Fprintf(w, `{"value":[{"skuPartNumber":"SPE_E3","consumedUnits":97,"prepaidUnits":{"enabled":100}}],"@odata.nextLink":"%s/page2"}`, server.URL)
		case "/page2":
			fmt.Fprint(w, `{"value":[{"skuPartNumber":"MCOEV","consumedUnits":10,"prepaidUnits":{"enabled":10}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	skus, err := testClient(server).SubscribedSKUs(context.Background())
	if err != nil {
		t.Fatalf("SubscribedSKUs failed: %v", err)
	}
	if len(skus) != 2 {
		t.Fatalf("got %d skus, want 2", len(skus))
	}
	if skus[0].SKUPartNumber != "SPE_E3" || skus[0].FreeUnits() != 3 {
		t.Errorf("skus[0] = %+v", skus[0])
	}
	if skus[1].FreeUnits() != 0 {
		t.Errorf("skus[1] = %+v", skus[1])
	}
}

func TestSendMail(t *testing.T) {
	attachment := filepath.Join(t.TempDir(), "rapport.txt")
	if err := os.WriteFile(attachment, []byte("indhold"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got struct {
		Message struct {
			Subject string `json:"subject"`
			Body    struct {
				ContentType string `json:"contentType"`
				Content     string `json:"content"`
			} `json:"body"`
			ToRecipients []struct {
				EmailAddress struct {
					Address string `json:"address"`
				} `json:"emailAddress"`
			} `json:"toRecipients"`
			Attachments []struct {
				ODataType    string `json:"@odata.type"`
				Name         string `json:"name"`
				ContentBytes string `json:"contentBytes"`
			} `json:"attachments"`
		} `json:"message"`
		SaveToSentItems bool `json:"saveToSentItems"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/robot@nyborg.dk/sendMail" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	err := testClient(server).SendMail(context.Background(), &Mail{
		Sender:          "robot@nyborg.dk",
		Recipients:      []string{"anne@nyborg.dk"},
		Subject:         "Rapport",
		Body:            "<p>Hej</p>",
		AttachmentPaths: []string{attachment},
	})
	if err != nil {
		t.Fatalf("SendMail failed: %v", err)
	}

	if got.Message.Subject != "Rapport" || got.Message.Body.ContentType != "Html" {
		t.Errorf("message = %+v", got.Message)
	}
	if len(got.Message.ToRecipients) != 1 || got.Message.ToRecipients[0].EmailAddress.Address != "anne@nyborg.dk" {
		t.Errorf("recipients = %+v", got.Message.ToRecipients)
	}
	if !got.SaveToSentItems {
		t.Error("saveToSentItems should be set")
	}
	if len(got.Message.Attachments) != 1 {
		t.Fatalf("attachments = %+v", got.Message.Attachments)
	}
	att := got.Message.Attachments[0]
	if att.Name != "rapport.txt" || att.ODataType != "#microsoft.graph.fileAttachment" {
		t.Errorf("attachment = %+v", att)
	}
	content, err := base64.StdEncoding.DecodeString(att.ContentBytes)
	if err != nil || string(content) != "indhold" {
		t.Errorf("attachment content = %q, %v", content, err)
	}
}

func TestSendMailValidation(t *testing.T) {
	c := &Client{}
	if err := c.SendMail(context.Background(), &Mail{Sender: "robot@nyborg.dk"}); err == nil {
		t.Error("expected error without recipients")
	}
	err := c.SendMail(context.Background(), &Mail{
		Sender:     "robot@nyborg.dk",
		Recipients: []string{"anne@nyborg.dk"},
		BodyType:   "Markdown",
	})
	if err == nil {
		t.Error("expected error for unknown body type")
	}
}

func TestMessagesFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/faktura@nyborg.dk/mailFolders/Inbox/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		filter := r.URL.Query().Get("$filter")
		if !strings.Contains(filter, "from/emailAddress/address eq 'prisme@kmd.dk'") {
			t.Errorf("filter = %q", filter)
		}
		fmt.Fprint(w, `{"value":[{"id":"m1","subject":"Faktura","hasAttachments":true}]}`)
	}))
	defer server.Close()

	messages, err := testClient(server).Messages(context.Background(), "faktura@nyborg.dk",
		&MessageFilter{Sender: "prisme@kmd.dk"})
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m1" || !messages[0].HasAttachments {
		t.Errorf("messages = %+v", messages)
	}
}

func TestSaveAttachmentsSkipsExtensions(t *testing.T) {
	pdf := base64.StdEncoding.EncodeToString([]byte("pdf-indhold"))
	png := base64.StdEncoding.EncodeToString([]byte("logo"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"value":[
			{"@odata.type":"#microsoft.graph.fileAttachment","name":"faktura.pdf","contentBytes":"%s"},
			{"@odata.type":"#microsoft.graph.fileAttachment","name":"logo.PNG","contentBytes":"%s"},
			{"@odata.type":"#microsoft.graph.itemAttachment","name":"indlejret"}
		]}`, pdf, png)
	}))
	defer server.Close()

	dir := t.TempDir()
	saved, err := testClient(server).SaveAttachments(context.Background(), "faktura@nyborg.dk", "m1", dir, []string{".png", ".jpg"})
	if err != nil {
		t.Fatalf("SaveAttachments failed: %v", err)
	}
	if len(saved) != 1 || filepath.Base(saved[0]) != "faktura.pdf" {
		t.Errorf("saved = %v", saved)
	}

	content, err := os.ReadFile(saved[0])
	if err != nil || string(content) != "pdf-indhold" {
		t.Errorf("content = %q, %v", content, err)
	}
}
