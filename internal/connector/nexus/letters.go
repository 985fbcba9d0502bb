package nexus

import (
	"context"
	"fmt"
	"net/url"
)

// SendLetter fetches a letter by UUID and dispatches it through the external
// channel (digital post). The letter document is sent back unchanged; Nexus
// only needs the PUT on the updateAndSendExternally link.
func (c *Client) SendLetter(ctx context.Context, letterUUID string) error {
	query := url.Values{"uid": {letterUUID}}

	var letter map[string]any
	if err := c.http.GetJSON(ctx, "letters/withAttachment", query, &letter); err != nil {
		return fmt.Errorf("fetch letter %s: %w", letterUUID, err)
	}

	sendURL, ok := linkHref(letter, "updateAndSendExternally")
	if !ok {
		return fmt.Errorf("letter %s has no updateAndSendExternally link", letterUUID)
	}

	if _, err := c.http.Put(ctx, sendURL, letter); err != nil {
		return fmt.Errorf("send letter %s: %w", letterUUID, err)
	}

	return nil
}
