package export

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsWriter implements SheetWriter using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write rewrites the receipt, item and target sheets and appends one SUMMARY row.
func (w *SheetsWriter) Write(ctx context.Context, report Report) error {
	ids, err := w.ensureSheets(ctx, SheetReceipts, SheetItems, SheetTargets, SheetSummary)
	if err != nil {
		return err
	}

	_, err = w.svc.Spreadsheets.Values.BatchClear(
		w.spreadsheetID,
		&sheets.BatchClearValuesRequest{
			Ranges: []string{SheetReceipts + "!A:H", SheetItems + "!A:H", SheetTargets + "!A:F"},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheets: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data: []*sheets.ValueRange{
				{Range: SheetReceipts + "!A1", Values: buildReceipts(report.Receipts)},
				{Range: SheetItems + "!A1", Values: buildItems(report.Receipts)},
				{Range: SheetTargets + "!A1", Values: buildTargets(report.Receipts)},
			},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheets: %w", err)
	}

	if err := w.appendSummary(ctx, report.Summary); err != nil {
		return err
	}

	return w.formatHeaders(ctx, ids)
}

// appendSummary writes the SUMMARY header once, then appends the run's row.
func (w *SheetsWriter) appendSummary(ctx context.Context, s Summary) error {
	existing, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, SheetSummary+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading SUMMARY header: %w", err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			SheetSummary+"!A1",
			&sheets.ValueRange{Values: [][]any{summaryHeader}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing SUMMARY header: %w", err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		SheetSummary+"!A:F",
		&sheets.ValueRange{Values: [][]any{summaryRow(s)}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending SUMMARY row: %w", err)
	}
	return nil
}

// formatHeaders makes row 1 of every sheet bold, light green and frozen.
func (w *SheetsWriter) formatHeaders(ctx context.Context, ids map[string]int64) error {
	lightGreen := &sheets.Color{Red: 0.851, Green: 0.918, Blue: 0.827}

	var reqs []*sheets.Request
	for _, id := range ids {
		reqs = append(reqs,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{SheetId: id, StartRowIndex: 0, EndRowIndex: 1},
					Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: lightGreen,
						TextFormat:      &sheets.TextFormat{Bold: true},
					}},
					Fields: "userEnteredFormat(backgroundColor,textFormat)",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:        id,
						GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		)
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("formatting sheets: %w", err)
	}
	return nil
}

// ensureSheets creates any of the named sheets that do not already exist and
// returns the sheet id of each.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) (map[string]int64, error) {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	ids := make(map[string]int64, len(names))
	for _, s := range spreadsheet.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetId
	}

	var requests []*sheets.Request
	for _, name := range names {
		if _, ok := ids[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) > 0 {
		resp, err := w.svc.Spreadsheets.BatchUpdate(
			w.spreadsheetID,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
		).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("creating sheets: %w", err)
		}
		for _, r := range resp.Replies {
			if r.AddSheet != nil && r.AddSheet.Properties != nil {
				ids[r.AddSheet.Properties.Title] = r.AddSheet.Properties.SheetId
			}
		}
	}

	wanted := make(map[string]int64, len(names))
	for _, name := range names {
		if id, ok := ids[name]; ok {
			wanted[name] = id
		}
	}
	return wanted, nil
}
