// Package sheets mirrors new work entries to a Google-Sheets-style
// spreadsheet via the values.append REST endpoint. The sync is best
// effort: callers log failures and move on.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var appendFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "timeclock_sheet_sync_failures_total",
	Help: "Spreadsheet append attempts that failed.",
})

// Row is one exported entry line: date, username, project, times, description.
type Row struct {
	WorkDate    string
	Username    string
	ProjectName string
	StartTime   string
	EndTime     string
	Description string
}

// Client appends rows to one spreadsheet.
type Client struct {
	BaseURL       string
	SpreadsheetID string
	Token         string
	Range         string
	HTTP          *http.Client
}

// New creates a sheets client.
func New(baseURL, spreadsheetID, token string) *Client {
	return &Client{
		BaseURL:       baseURL,
		SpreadsheetID: spreadsheetID,
		Token:         token,
		Range:         "Sheet1!A:F",
		HTTP:          &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether a spreadsheet target is set up.
func (c *Client) Configured() bool {
	return c != nil && c.SpreadsheetID != "" && c.Token != ""
}

// Append adds one row to the sheet.
func (c *Client) Append(ctx context.Context, row Row) error {
	if err := c.append(ctx, row); err != nil {
		appendFailures.Inc()
		return err
	}
	return nil
}

func (c *Client) append(ctx context.Context, row Row) error {
	payload := map[string]any{
		"values": [][]string{
			{row.WorkDate, row.Username, row.ProjectName, row.StartTime, row.EndTime, row.Description},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.BaseURL, c.SpreadsheetID, c.Range)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sheets: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sheets: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sheets: append failed (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
