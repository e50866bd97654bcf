package worker

import (
	"context"
	"log/slog"
	"time"
)

// Exporter defines the interface for pushing receipts to a spreadsheet.
type Exporter interface {
	Export(ctx context.Context) (int, error)
}

// DefaultExportInterval is used when the configured interval is not positive.
const DefaultExportInterval = 24 * time.Hour

// ExportWorker periodically exports checkout receipts.
type ExportWorker struct {
	exporter Exporter
	interval time.Duration
}

// NewExportWorker creates a new ExportWorker.
func NewExportWorker(exporter Exporter, interval time.Duration) *ExportWorker {
	if interval <= 0 {
		slog.Warn("ExportWorker: non-positive interval, using default", "interval", interval, "default", DefaultExportInterval)
		interval = DefaultExportInterval
	}
	return &ExportWorker{
		exporter: exporter,
		interval: interval,
	}
}

func (w *ExportWorker) export(ctx context.Context, stage string) {
	n, err := w.exporter.Export(ctx)
	if err != nil {
		slog.Error("ExportWorker: "+stage+" export failed", "error", err)
		return
	}
	slog.Info("ExportWorker: "+stage+" export completed", "receipts", n)
}

// Run starts the export worker loop. It blocks until the context is cancelled.
func (w *ExportWorker) Run(ctx context.Context) {
	slog.Info("ExportWorker: starting", "interval", w.interval)

	// Export immediately on startup
	w.export(ctx, "initial")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ExportWorker: shutting down")
			return
		case <-ticker.C:
			w.export(ctx, "scheduled")
		}
	}
}
