package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"linkup/internal/usecase"
)

const defaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// invalidTokenErrors are provider error codes meaning the token should be
// pruned from the recipient's list.
var invalidTokenErrors = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
	"MismatchSenderId":    true,
}

// Client talks to the FCM legacy HTTP API. One request carries the whole
// token batch; the response reports a per-token outcome.
type Client struct {
	httpClient *http.Client
	endpoint   string
	serverKey  string
}

func NewClient(endpoint, serverKey string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   endpoint,
		serverKey:  serverKey,
	}
}

type multicastRequest struct {
	RegistrationIds []string          `json:"registration_ids"`
	Notification    map[string]string `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type multicastResponse struct {
	Results []struct {
		MessageId string `json:"message_id,omitempty"`
		Error     string `json:"error,omitempty"`
	} `json:"results"`
}

func (c *Client) SendMulticast(ctx context.Context, tokens []string, payload usecase.PushPayload) ([]usecase.PushResult, error) {
	reqBody := multicastRequest{
		RegistrationIds: tokens,
		Notification: map[string]string{
			"title": payload.Title,
			"body":  payload.Body,
		},
		Data: payload.Data,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}

	var parsed multicastResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]usecase.PushResult, 0, len(tokens))
	for i, token := range tokens {
		result := usecase.PushResult{Token: token}
		if i < len(parsed.Results) {
			r := parsed.Results[i]
			result.Delivered = r.Error == ""
			result.Invalid = invalidTokenErrors[r.Error]
		}
		results = append(results, result)
	}

	return results, nil
}
