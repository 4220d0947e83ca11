package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultGitHubAPIURL is the public GitHub REST endpoint.
const DefaultGitHubAPIURL = "https://api.github.com"

// GitHubClient opens pull requests through the GitHub REST API.
type GitHubClient struct {
	apiURL string
	repo   string
	client *http.Client
}

type pullRequestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

type pullRequestResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

type githubError struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewGitHubClient authenticates every request with token.
func NewGitHubClient(ctx context.Context, apiURL string, repo string, token string) *GitHubClient {
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = 30 * time.Second
	return &GitHubClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		repo:   repo,
		client: httpClient,
	}
}

// CreatePullRequest returns the URL of the new pull request.
func (c *GitHubClient) CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error) {
	payload, err := json.Marshal(pullRequestRequest{Title: title, Body: body, Head: head, Base: base})
	if err != nil {
		return "", fmt.Errorf("error marshalling pull request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/pulls", c.apiURL, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating pull request request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending pull request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading pull request response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		message := strings.TrimSpace(string(data))
		var apiErr githubError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
			for _, e := range apiErr.Errors {
				if e.Message != "" {
					message += ": " + e.Message
				}
			}
		}
		return "", fmt.Errorf("github API error (status %d): %s", resp.StatusCode, message)
	}

	var created pullRequestResponse
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("error decoding pull request response: %w", err)
	}
	return created.HTMLURL, nil
}
