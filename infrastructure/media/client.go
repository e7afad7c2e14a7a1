package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client asks the media service to drop a stored asset. Uploads happen
// elsewhere; this backend only deletes during message and room cleanup.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *Client) Delete(ctx context.Context, assetURL, mediaType string) error {
	endpoint := fmt.Sprintf("%s/assets?url=%s&type=%s",
		c.baseURL, url.QueryEscape(assetURL), url.QueryEscape(mediaType))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("media service returned status %d", resp.StatusCode)
	}

	return nil
}
