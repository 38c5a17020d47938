// Package sheets reads marketing metric spreadsheets through the Google
// Sheets API and maps configured metric columns onto the freshest data row.
package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Worksheet identifies one tab of a spreadsheet.
type Worksheet struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client wraps the Sheets API service with bounded-timeout calls.
type Client struct {
	svc     *sheetsapi.Service
	timeout time.Duration
}

// NewClient builds a read-only Sheets client from a service-account JSON key
// file. An empty credentialsFile falls back to application default
// credentials.
func NewClient(ctx context.Context, credentialsFile string, timeout time.Duration) (*Client, error) {
	opts := []option.ClientOption{
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{svc: svc, timeout: timeout}, nil
}

// Worksheets lists the tabs of a spreadsheet in sheet order.
func (c *Client) Worksheets(ctx context.Context, spreadsheetID string) ([]Worksheet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet %s: %w", spreadsheetID, err)
	}

	worksheets := make([]Worksheet, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		worksheets = append(worksheets, Worksheet{
			ID:   sh.Properties.SheetId,
			Name: sh.Properties.Title,
		})
	}
	return worksheets, nil
}

// Values fetches all cell values of a worksheet. An empty sheetName reads the
// first tab.
func (c *Client) Values(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	readRange := "A:ZZ"
	if sheetName != "" {
		readRange = fmt.Sprintf("'%s'!A:ZZ", sheetName)
	}

	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch values from %s: %w", spreadsheetID, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
