package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/duke-git/lancet/v2/netutil"
)

// Client talks to the dashboard backend that owns this bot's configuration,
// wallet and trade ledger.
type Client struct {
	base  string
	botID string
	token string
	http  *netutil.HttpClient
}

func NewClient(base, botID, token string) *Client {
	return &Client{
		base:  base,
		botID: botID,
		token: token,
		http:  netutil.NewHttpClient(),
	}
}

func (c *Client) header() http.Header {
	header := http.Header{}
	header.Add("Content-Type", "application/json")
	header.Add("Authorization", "Bearer "+c.token)
	return header
}

func (c *Client) botPath(suffix string) string {
	return "/bots/" + c.botID + suffix
}

func (c *Client) do(method, path string, body any) ([]byte, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
	}

	req := &netutil.HttpRequest{
		RawURL:  c.base + path,
		Method:  method,
		Headers: c.header(),
		Body:    raw,
	}

	resp, err := c.http.SendRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	return data, nil
}
