package graph

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

// AttachmentMaxSize is the Microsoft Graph file attachment size limit.
const AttachmentMaxSize = 3 * 1024 * 1024 // 3 MB

// =============================================================================
// SENDING MAIL
// =============================================================================

// emailAddress wraps an address for the Graph message format.
type emailAddress struct {
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"` // "Text" or "Html"
	Content     string `json:"content"`
}

// FileAttachment is a Graph fileAttachment resource.
type FileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

type message struct {
	Subject      string           `json:"subject"`
	Body         itemBody         `json:"body"`
	ToRecipients []recipient      `json:"toRecipients"`
	Attachments  []FileAttachment `json:"attachments,omitempty"`
}

// Mail describes an outgoing robot mail.
type Mail struct {
	Sender     string
	Recipients []string
	Subject    string
	Body       string
	BodyType   string // "Text" or "Html" (default: Html)

	// AttachmentPaths are files converted to inline attachments.
	AttachmentPaths []string
}

// ConvertFileAttachment reads a file and converts it to a Graph attachment.
// Files larger than AttachmentMaxSize are rejected.
func ConvertFileAttachment(path string) (*FileAttachment, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("attachment %s does not exist", path)
	}

	if info.Size() > AttachmentMaxSize {
		return nil, fmt.Errorf("attachment %s (%d bytes) exceeds the %d byte limit",
			path, info.Size(), AttachmentMaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &FileAttachment{
		ODataType:    "#microsoft.graph.fileAttachment",
		Name:         filepath.Base(path),
		ContentType:  contentType,
		ContentBytes: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// SendMail sends a mail through the sender's mailbox and saves it to sent
// items.
func (c *Client) SendMail(ctx context.Context, m *Mail) error {
	if m.Sender == "" || len(m.Recipients) == 0 {
		return fmt.Errorf("graph: sender and recipients must be set")
	}

	bodyType := m.BodyType
	if bodyType == "" {
		bodyType = "Html"
	}
	if bodyType != "Text" && bodyType != "Html" {
		return fmt.Errorf("graph: body type must be Text or Html, got %q", bodyType)
	}

	msg := message{
		Subject: m.Subject,
		Body:    itemBody{ContentType: bodyType, Content: m.Body},
	}
	for _, r := range m.Recipients {
		msg.ToRecipients = append(msg.ToRecipients, recipient{EmailAddress: emailAddress{Address: r}})
	}
	for _, path := range m.AttachmentPaths {
		att, err := ConvertFileAttachment(path)
		if err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, *att)
	}

	body := map[string]any{
		"message":         msg,
		"saveToSentItems": true,
	}

	if _, err := c.http.Post(ctx, "users/"+m.Sender+"/sendMail", body); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	log.Printf("Sent mail to %v from %q with subject %q", m.Recipients, m.Sender, m.Subject)
	return nil
}

// =============================================================================
// READING MAIL
// =============================================================================

// Message is a mailbox message. Only the fields the jobs consume are typed.
type Message struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	ReceivedDateTime string `json:"receivedDateTime"`
	HasAttachments   bool   `json:"hasAttachments"`
}

// MessageFilter narrows a mailbox listing.
type MessageFilter struct {
	// Folder is a well-known folder name (Inbox, SentItems, DeletedItems,
	// Archive). Default: Inbox.
	Folder string

	Sender          string
	OnlyUnread      bool
	ReceivedFrom    time.Time
	ReceivedTo      time.Time
	SubjectContains string
	Top             int
}

// buildQuery assembles the OData query and extra headers for a filter.
func (f *MessageFilter) buildQuery() (url.Values, map[string]string) {
	top := f.Top
	if top == 0 {
		top = 100
	}

	query := url.Values{"$top": {strconv.Itoa(top)}}
	headers := map[string]string{}

	if f.SubjectContains != "" {
		query.Set("$search", fmt.Sprintf("%q", f.SubjectContains))
		headers["ConsistencyLevel"] = "eventual"
	}

	var parts []string
	if f.Sender != "" {
		parts = append(parts, fmt.Sprintf("from/emailAddress/address eq '%s'", f.Sender))
	}
	if f.OnlyUnread {
		parts = append(parts, "isRead eq false")
	}
	if !f.ReceivedFrom.IsZero() {
		parts = append(parts, "receivedDateTime ge "+f.ReceivedFrom.Format(time.RFC3339))
	}
	if !f.ReceivedTo.IsZero() {
		parts = append(parts, "receivedDateTime le "+f.ReceivedTo.Format(time.RFC3339))
	}
	if len(parts) > 0 {
		query.Set("$filter", strings.Join(parts, " and "))
	}

	return query, headers
}

// Messages lists messages in a mailbox folder matching the filter.
func (c *Client) Messages(ctx context.Context, mailbox string, filter *MessageFilter) ([]Message, error) {
	if filter == nil {
		filter = &MessageFilter{}
	}
	folder := filter.Folder
	if folder == "" {
		folder = "Inbox"
	}

	query, headers := filter.buildQuery()

	resp, err := c.http.Do(ctx, &httpc.Request{
		Method:  "GET",
		Path:    fmt.Sprintf("users/%s/mailFolders/%s/messages", mailbox, folder),
		Query:   query,
		Headers: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var data struct {
		Value []Message `json:"value"`
	}
	if err := resp.JSON(&data); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	return data.Value, nil
}

// SaveAttachments downloads the file attachments of a message into dir,
// skipping the given extensions (e.g. ".png"). It returns the saved paths.
func (c *Client) SaveAttachments(ctx context.Context, mailbox, messageID, dir string, skipExtensions []string) ([]string, error) {
	var data struct {
		Value []struct {
			ODataType    string `json:"@odata.type"`
			Name         string `json:"name"`
			ContentBytes string `json:"contentBytes"`
		} `json:"value"`
	}

	path := fmt.Sprintf("users/%s/messages/%s/attachments", mailbox, messageID)
	if err := c.http.GetJSON(ctx, path, nil, &data); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	skip := make(map[string]bool, len(skipExtensions))
	for _, ext := range skipExtensions {
		skip[strings.ToLower(ext)] = true
	}

	var saved []string
	for _, att := range data.Value {
		if att.ODataType != "#microsoft.graph.fileAttachment" {
			continue
		}
		if skip[strings.ToLower(filepath.Ext(att.Name))] {
			continue
		}

		content, err := base64.StdEncoding.DecodeString(att.ContentBytes)
		if err != nil {
			return saved, fmt.Errorf("decode attachment %s: %w", att.Name, err)
		}

		dest := filepath.Join(dir, att.Name)
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return saved, fmt.Errorf("write attachment %s: %w", dest, err)
		}
		saved = append(saved, dest)
	}

	return saved, nil
}

// MoveMessage moves a message to a well-known destination folder.
func (c *Client) MoveMessage(ctx context.Context, mailbox, messageID, destinationFolder string) error {
	path := fmt.Sprintf("users/%s/messages/%s/move", mailbox, messageID)
	body := map[string]string{"destinationId": destinationFolder}

	if _, err := c.http.Post(ctx, path, body); err != nil {
		return fmt.Errorf("move message: %w", err)
	}
	return nil
}
