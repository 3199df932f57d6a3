// Package sheets is the only code that talks to the spreadsheet API.
//
// [API] is a deliberately narrow view of Google Sheets v4: list tabs, add a
// tab, read/append/update a value range and delete rows. [Client] layers the
// record store's needs on top of it: per-call timeouts, retry with
// exponential backoff on transient failures, batched appends, header
// provisioning and row addressing.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks . API

// API is the subset of the spreadsheet service the client needs.
// Ranges are A1 notation; row and column indices passed to DeleteRows are
// zero-based sheet positions with an exclusive end.
type API interface {
	ListSheets(ctx context.Context) (map[string]int64, error)
	AddSheet(ctx context.Context, title string) (int64, error)
	GetValues(ctx context.Context, a1 string) ([][]string, error)
	AppendValues(ctx context.Context, a1 string, rows [][]string) error
	UpdateValues(ctx context.Context, a1 string, rows [][]string) error
	DeleteRows(ctx context.Context, sheetID, start, end int64) error
}

// googleAPI implements API on top of the generated Sheets v4 client.
type googleAPI struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewGoogleAPI authenticates with a service-account credentials file and
// returns an API bound to one spreadsheet.
func NewGoogleAPI(ctx context.Context, spreadsheetID, credentialsFile string) (API, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &googleAPI{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *googleAPI) ListSheets(ctx context.Context) (map[string]int64, error) {
	resp, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		ids[sh.Properties.Title] = sh.Properties.SheetId
	}
	return ids, nil
}

func (g *googleAPI) AddSheet(ctx context.Context, title string) (int64, error) {
	resp, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %q: empty reply", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (g *googleAPI) GetValues(ctx context.Context, a1 string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			row[j] = fmt.Sprint(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

func (g *googleAPI) AppendValues(ctx context.Context, a1 string, rows [][]string) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, a1, toValueRange(rows)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (g *googleAPI) UpdateValues(ctx context.Context, a1 string, rows [][]string) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, a1, toValueRange(rows)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (g *googleAPI) DeleteRows(ctx context.Context, sheetID, start, end int64) error {
	_, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: start,
					EndIndex:   end,
				},
			},
		}},
	}).Context(ctx).Do()
	return err
}

// toValueRange converts string rows to the API's [][]interface{} shape.
// RAW input keeps values such as "0042" or "=SUM(A1)" as literal text.
func toValueRange(rows [][]string) *gsheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return &gsheets.ValueRange{Values: values}
}
