// Package strava provides the outbound client for the Strava v3 API: the
// refresh-grant token exchange, activity detail fetch, description update,
// and the athlete activity listing.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
)

// Client talks to the Strava API. The base URL is injectable for tests.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewClient constructs a Client with sane defaults.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RefreshToken exchanges a refresh token for a new token set. Single attempt;
// the caller decides what a failure means.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Credential{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return domain.Credential{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Credential{}, err
	}
	if payload.AccessToken == "" {
		return domain.Credential{}, fmt.Errorf("token endpoint returned no access_token")
	}

	return domain.Credential{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    time.Unix(payload.ExpiresAt, 0).UTC(),
	}, nil
}

// activityPayload mirrors the wire shape. Pointer fields distinguish absent
// values from zero values so incomplete activities can be rejected.
type activityPayload struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	StartDate   *string  `json:"start_date"`
	ElapsedTime *int     `json:"elapsed_time"`
	Distance    *float64 `json:"distance"`
}

func (p activityPayload) toDetail() (domain.ActivityDetail, error) {
	if p.StartDate == nil || p.ElapsedTime == nil {
		return domain.ActivityDetail{}, fmt.Errorf("%w: activity %d", domain.ErrIncompleteActivity, p.ID)
	}
	start, err := time.Parse(time.RFC3339, *p.StartDate)
	if err != nil {
		return domain.ActivityDetail{}, fmt.Errorf("%w: activity %d: bad start_date %q", domain.ErrIncompleteActivity, p.ID, *p.StartDate)
	}

	detail := domain.ActivityDetail{
		ID:             p.ID,
		Name:           p.Name,
		Type:           p.Type,
		StartDate:      start.UTC(),
		ElapsedSeconds: *p.ElapsedTime,
	}
	if p.Distance != nil {
		detail.Distance = *p.Distance
	}
	return detail, nil
}

// Activity fetches activity detail by ID. A response missing start_date or
// elapsed_time is surfaced as domain.ErrIncompleteActivity.
func (c *Client) Activity(ctx context.Context, activityID int64, accessToken string) (domain.ActivityDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v3/activities/%d", c.baseURL, activityID), nil)
	if err != nil {
		return domain.ActivityDetail{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ActivityDetail{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return domain.ActivityDetail{}, fmt.Errorf("activity fetch returned %d: %s", resp.StatusCode, body)
	}

	var payload activityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.ActivityDetail{}, err
	}
	if payload.ID == 0 {
		payload.ID = activityID
	}
	return payload.toDetail()
}

// UpdateDescription writes the free-text description on the activity.
func (c *Client) UpdateDescription(ctx context.Context, activityID int64, accessToken, description string) error {
	form := url.Values{"description": {description}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/api/v3/activities/%d", c.baseURL, activityID), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("description update returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// AthleteActivities lists the athlete's recent activities. Entries missing
// required fields are skipped rather than failing the whole listing.
func (c *Client) AthleteActivities(ctx context.Context, accessToken string, page, perPage int) ([]domain.ActivityDetail, error) {
	endpoint := c.baseURL + "/api/v3/athlete/activities?page=" + strconv.Itoa(page) + "&per_page=" + strconv.Itoa(perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("athlete activities returned %d: %s", resp.StatusCode, body)
	}

	var payloads []activityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, err
	}

	details := make([]domain.ActivityDetail, 0, len(payloads))
	for _, payload := range payloads {
		detail, err := payload.toDetail()
		if err != nil {
			continue
		}
		details = append(details, detail)
	}
	return details, nil
}
