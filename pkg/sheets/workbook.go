// Package sheets wraps the Google Sheets API as an append-only workbook.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"report-desk/pkg/log"
)

// Scopes requested for the service account.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
}

// New sheets get the same grid size the desk has always used.
const (
	defaultRows = 1000
	defaultCols = 20
)

// Workbook is one spreadsheet.
type Workbook struct {
	svc *sheetsapi.Service
	id  string
	url string
}

// Open authenticates with a service account JSON key and resolves the spreadsheet.
// An empty spreadsheetID creates a new spreadsheet named title.
func Open(ctx context.Context, credentialsJSON []byte, spreadsheetID, title string) (*Workbook, error) {
	jwtConf, err := google.JWTConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	// token 刷新会在之后的调用中发生，不能绑定到打开时的 ctx
	httpClient := jwtConf.Client(context.WithoutCancel(ctx))
	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return OpenService(ctx, svc, spreadsheetID, title)
}

// OpenService resolves the spreadsheet through an existing service.
func OpenService(ctx context.Context, svc *sheetsapi.Service, spreadsheetID, title string) (*Workbook, error) {
	var ss *sheetsapi.Spreadsheet
	var err error
	if spreadsheetID != "" {
		ss, err = svc.Spreadsheets.Get(spreadsheetID).Fields("spreadsheetId", "spreadsheetUrl").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
		}
	} else {
		ss, err = svc.Spreadsheets.Create(&sheetsapi.Spreadsheet{
			Properties: &sheetsapi.SpreadsheetProperties{Title: title},
		}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to create spreadsheet: %w", err)
		}
		log.Infof("新建电子表格: %s", ss.SpreadsheetUrl)
	}
	return &Workbook{svc: svc, id: ss.SpreadsheetId, url: ss.SpreadsheetUrl}, nil
}

func (w *Workbook) ID() string  { return w.id }
func (w *Workbook) URL() string { return w.url }

// SheetTitles lists the titles of all sheets.
func (w *Workbook) SheetTitles(ctx context.Context) ([]string, error) {
	ss, err := w.svc.Spreadsheets.Get(w.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

// AddSheet creates a sheet and writes its header row.
func (w *Workbook) AddSheet(ctx context.Context, title string, header []string) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{
					Title: title,
					GridProperties: &sheetsapi.GridProperties{
						RowCount:    defaultRows,
						ColumnCount: defaultCols,
					},
				},
			},
		}},
	}
	if _, err := w.svc.Spreadsheets.BatchUpdate(w.id, req).Context(ctx).Do(); err != nil {
		return err
	}
	return w.AppendRow(ctx, title, header)
}

// AppendRow appends one row after the last non-empty row of the sheet.
func (w *Workbook) AppendRow(ctx context.Context, title string, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	_, err := w.svc.Spreadsheets.Values.Append(w.id, a1(title), &sheetsapi.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func a1(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}
