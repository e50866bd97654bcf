package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/ledger"
	"github.com/bitcoinuniversity/invest/internal/submit"
)

var exportTime = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func sampleReceipts() []ledger.Receipt {
	return []ledger.Receipt{
		{
			Wallet: "0xaaa", Kind: submit.KindRelayed, TransactionID: "q1",
			Principal: "3", Fee: "0.03", Value: "3.03", CreatedAt: exportTime,
			Items: []ledger.ReceiptItem{
				{TargetType: domain.TargetTypeDAO, TargetID: "d1", TargetName: "Research DAO", Amount: "1", Currency: "ETH"},
				{TargetType: domain.TargetTypeGrant, TargetID: "g1", TargetName: "Open Grant", Amount: "2", Currency: "ETH"},
			},
		},
		{
			Wallet: "0xbbb", Kind: submit.KindRelayed, TransactionID: "q2",
			Principal: "5", Fee: "0.05", Value: "5.05", CreatedAt: exportTime,
			Items: []ledger.ReceiptItem{
				{TargetType: domain.TargetTypeDAO, TargetID: "d1", TargetName: "Research DAO", Amount: "5", Currency: "ETH"},
			},
		},
		{
			Wallet: "0xccc", Kind: submit.KindDemo, TransactionID: "0xdemo",
			Principal: "100", Fee: "1", Value: "101", CreatedAt: exportTime,
			Items: []ledger.ReceiptItem{
				{TargetType: domain.TargetTypeScholarship, TargetID: "s1", TargetName: "Scholarship", Amount: "100", Currency: "ETH"},
			},
		},
	}
}

type stubSource struct {
	receipts []ledger.Receipt
	err      error
	limit    int
}

func (s *stubSource) Recent(_ context.Context, limit int) ([]ledger.Receipt, error) {
	s.limit = limit
	return s.receipts, s.err
}

type captureWriter struct {
	report *Report
	err    error
}

func (w *captureWriter) Write(_ context.Context, r Report) error {
	w.report = &r
	return w.err
}

func TestSummarizeExcludesDemoFromTotals(t *testing.T) {
	s := summarize(sampleReceipts(), exportTime)

	if s.Receipts != 3 || s.Relayed != 2 || s.Demo != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", s.Receipts, s.Relayed, s.Demo)
	}
	if s.Principal.String() != "8" {
		t.Errorf("principal = %s, want 8", s.Principal)
	}
	if s.Fee.String() != "0.08" {
		t.Errorf("fee = %s, want 0.08", s.Fee)
	}
}

func TestBuildTargets(t *testing.T) {
	data := buildTargets(sampleReceipts())

	// header + d1 + g1; demo scholarship excluded
	if len(data) != 3 {
		t.Fatalf("rows = %d, want 3", len(data))
	}
	first := data[1]
	if first[1] != "d1" {
		t.Errorf("first target = %v, want d1", first[1])
	}
	if first[4] != 2 {
		t.Errorf("investors = %v, want 2", first[4])
	}
	if first[5] != 6.0 {
		t.Errorf("total = %v, want 6", first[5])
	}
}

func TestBuildItemsOneRowPerLine(t *testing.T) {
	data := buildItems(sampleReceipts())
	if len(data) != 5 {
		t.Errorf("rows = %d, want 5", len(data))
	}
}

func TestServiceExport(t *testing.T) {
	src := &stubSource{receipts: sampleReceipts()}
	w := &captureWriter{}
	svc := NewService(src, w)

	n, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("exported = %d, want 3", n)
	}
	if src.limit != DefaultWindow {
		t.Errorf("limit = %d, want %d", src.limit, DefaultWindow)
	}
	if w.report == nil || w.report.Summary.Relayed != 2 {
		t.Errorf("unexpected report: %+v", w.report)
	}
}

func TestServiceExportErrors(t *testing.T) {
	_, err := NewService(&stubSource{err: errors.New("db down")}, &captureWriter{}).Export(context.Background())
	if err == nil {
		t.Error("expected source error")
	}

	_, err = NewService(&stubSource{}, &captureWriter{err: errors.New("quota")}).Export(context.Background())
	if err == nil {
		t.Error("expected writer error")
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "receipts.xlsx")
	w := NewXLSXWriter(path)

	report := Report{Receipts: sampleReceipts(), Summary: summarize(sampleReceipts(), exportTime)}
	if err := w.Write(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	want := []string{SheetReceipts, SheetItems, SheetTargets, SheetSummary}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	rows, err := f.GetRows(SheetReceipts)
	if err != nil {
		t.Fatalf("reading rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("receipt rows = %d, want 4", len(rows))
	}
	if rows[1][1] != "0xaaa" || rows[1][3] != "q1" {
		t.Errorf("first receipt row = %v", rows[1])
	}
}
