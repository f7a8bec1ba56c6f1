package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nuhaid/barakah/models"
)

// Client is the REST client for the habit endpoints of the server. It
// attaches the signed-in user's bearer token to every request and maps the
// duplicate-log conflict to models.ErrDuplicateLog.
type Client struct {
	serverURL string
	http      *http.Client
}

// NewClient creates a Client for the server at the given URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// send issues a JSON request and decodes the response into out (when out is
// non-nil). Authenticated requests take the current session token from the
// keyring, refreshing it first if needed.
func (c *Client) send(ctx context.Context, method, path string, payload interface{}, authed bool, out interface{}) error {

	var body io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to create request: %v", err)
		}
		body = bytes.NewBuffer(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, err := IsUserAuthenticated()
		if err != nil {
			return err
		}
		if token == "" {
			return errors.New("no user is currently signed in")
		}
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusConflict {
		return models.ErrDuplicateLog
	}
	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(bodyBytes, &errBody); err == nil && errBody.Error != "" {
			return errors.New(errBody.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(bodyBytes, out)
	}
	return nil
}

// Health probes the server's health endpoint. Used as the connectivity
// check by the sync watcher.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, "GET", "/health", nil, false, nil)
}

// GetHabits fetches the shared habit master list.
func (c *Client) GetHabits(ctx context.Context) ([]models.Habit, error) {
	var habits []models.Habit
	if err := c.send(ctx, "GET", "/habits", nil, true, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// GetProfile fetches the signed-in user's points and streak.
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	profile := &models.Profile{}
	if err := c.send(ctx, "GET", "/profile", nil, true, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GetLogs fetches the signed-in user's completion logs for the given day.
func (c *Client) GetLogs(ctx context.Context, date string) ([]models.HabitLog, error) {
	var logs []models.HabitLog
	if err := c.send(ctx, "GET", "/logs?date="+date, nil, true, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetAchievements fetches every achievement together with the signed-in
// user's earned markers.
func (c *Client) GetAchievements(ctx context.Context) ([]models.AchievementStatus, error) {
	var achievements []models.AchievementStatus
	if err := c.send(ctx, "GET", "/achievements", nil, true, &achievements); err != nil {
		return nil, err
	}
	return achievements, nil
}

// CreateLog inserts a completion log row. Returns models.ErrDuplicateLog
// when a log for the same habit and day already exists.
func (c *Client) CreateLog(ctx context.Context, userID, habitID, date string) error {
	payload := map[string]string{
		"habitId": habitID,
		"date":    date,
	}
	return c.send(ctx, "POST", "/logs", payload, true, nil)
}

// DeleteLog removes a completion log row. Deleting a row that does not
// exist succeeds.
func (c *Client) DeleteLog(ctx context.Context, userID, habitID, date string) error {
	payload := map[string]string{
		"habitId": habitID,
		"date":    date,
	}
	return c.send(ctx, "DELETE", "/logs", payload, true, nil)
}

// IncrementPoints adjusts the signed-in user's point total by amount,
// which may be negative.
func (c *Client) IncrementPoints(ctx context.Context, userID string, amount int) error {
	payload := map[string]int{
		"amount": amount,
	}
	return c.send(ctx, "POST", "/rpc/increment_points", payload, true, nil)
}

// UpdateStreak asks the server to recompute the signed-in user's streak
// from the authoritative log history.
func (c *Client) UpdateStreak(ctx context.Context, userID string) error {
	return c.send(ctx, "POST", "/rpc/update_streak", map[string]string{}, true, nil)
}

// CheckAchievements asks the server to evaluate achievements against the
// user's current totals. Returns only the newly unlocked ones.
func (c *Client) CheckAchievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	var result struct {
		Unlocked []models.Achievement `json:"unlocked"`
	}
	if err := c.send(ctx, "POST", "/rpc/check_achievements", map[string]string{}, true, &result); err != nil {
		return nil, err
	}
	return result.Unlocked, nil
}
