package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// postJSON sends body to url and decodes the reply into out. Server errors and
// rate limits are retryable; other non-2xx statuses are permanent.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTransient(ctx, err) {
			return fmt.Errorf("failed to send request: %w", err)
		}
		return Permanent(fmt.Errorf("failed to send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error interface{} `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			msg = fmt.Sprint(apiErr.Error)
			if m, ok := apiErr.Error.(map[string]interface{}); ok && m["message"] != nil {
				msg = fmt.Sprint(m["message"])
			}
		}
		err := fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return Permanent(err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
