package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/service"
)

// summaryRows flattens outcomes into table rows
func summaryRows(res service.Result) [][]string {
	rows := make([][]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		library := o.Collection.Name
		if library == "" {
			library = "-"
		}
		rows = append(rows, []string{
			o.Server,
			library,
			string(o.Status),
			outcomeDetail(o),
		})
	}
	return rows
}

// outcomeDetail is the short human explanation of an outcome
func outcomeDetail(o service.Outcome) string {
	switch o.Status {
	case service.StatusUpdated:
		source := "catalog"
		if o.Custom {
			source = "custom"
		}
		detail := fmt.Sprintf("%d %s image(s) in %s", o.Images, source, o.Duration.Round(time.Millisecond))
		if o.OutputPath != "" {
			detail += ", saved " + o.OutputPath
		}
		return detail
	case service.StatusSkipped:
		return "newest item unchanged"
	case service.StatusExcluded:
		return "on the exclude list"
	case service.StatusEmpty:
		if errors.Is(o.Err, domain.ErrNoImages) {
			return "no image could be downloaded"
		}
		return "no item with usable artwork"
	default:
		if o.Err != nil {
			return o.Err.Error()
		}
		return ""
	}
}

// summaryFooter counts outcomes by status
func summaryFooter(res service.Result) string {
	return fmt.Sprintf("%d updated, %d skipped, %d empty, %d failed, %d excluded in %s",
		res.Count(service.StatusUpdated),
		res.Count(service.StatusSkipped),
		res.Count(service.StatusEmpty),
		res.Count(service.StatusFailed),
		res.Count(service.StatusExcluded),
		res.Duration.Round(time.Millisecond))
}

// renderSummary prints the run result as a table, or as tab separated lines
// when the output is not a terminal
func renderSummary(w io.Writer, res service.Result, styled bool) {
	headers := []string{"SERVER", "LIBRARY", "STATUS", "DETAIL"}
	rows := summaryRows(res)

	if !styled {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for _, r := range rows {
			fmt.Fprintln(w, strings.Join(r, "\t"))
		}
		fmt.Fprintln(w, summaryFooter(res))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			if col == 2 && row >= 0 && row < len(rows) {
				if s, ok := statusStyles[service.Status(rows[row][2])]; ok {
					return s.Padding(0, 1)
				}
			}
			return CellStyle
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, DimStyle.Render(summaryFooter(res)))
}
