package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"tubescribe/internal/logger"
	"tubescribe/internal/store"
)

var statusLabels = map[int]string{
	store.StatusNew:        "new",
	store.StatusDownloaded: "downloaded",
	store.StatusProcessed:  "processed",
}

// Write exports a snapshot of pipeline state to an xlsx workbook: a Summary
// sheet with per-status counts and a Channels sheet with per-channel video
// counts.
func Write(ctx context.Context, st *store.Store, path string, log *logger.Logger) error {
	l := log.WithComponent("report").WithField("path", path)
	l.Info("building pipeline report")

	sum, err := st.SummarizePipeline(ctx)
	if err != nil {
		l.WithError(err).Error("summarize failed")
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	f.SetCellValue(summary, "A1", "total videos")
	f.SetCellValue(summary, "B1", sum.TotalVideos)
	f.SetCellValue(summary, "A2", "total segments")
	f.SetCellValue(summary, "B2", sum.TotalSegments)

	row := 4
	f.SetCellValue(summary, fmt.Sprintf("A%d", row), "status")
	f.SetCellValue(summary, fmt.Sprintf("B%d", row), "videos")
	for _, status := range []int{store.StatusNew, store.StatusDownloaded, store.StatusProcessed} {
		row++
		f.SetCellValue(summary, fmt.Sprintf("A%d", row), statusLabels[status])
		f.SetCellValue(summary, fmt.Sprintf("B%d", row), sum.ByStatus[status])
	}

	const channels = "Channels"
	if _, err := f.NewSheet(channels); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	f.SetCellValue(channels, "A1", "channel")
	f.SetCellValue(channels, "B1", "videos")

	names := make([]string, 0, len(sum.ByChannel))
	for name := range sum.ByChannel {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		f.SetCellValue(channels, fmt.Sprintf("A%d", i+2), name)
		f.SetCellValue(channels, fmt.Sprintf("B%d", i+2), sum.ByChannel[name])
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	l.WithField("videos", sum.TotalVideos).Info("report written")
	return nil
}
