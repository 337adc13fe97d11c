package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/job-progress-tracker/pkg/client"
)

func renderProgressTable(rows []client.Progress) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Job", "Status", "Progress", "Completed", "Total", "Elapsed", "Error"})
	for _, p := range rows {
		tw.AppendRow(table.Row{
			p.JobID,
			p.Status,
			fmt.Sprintf("%d%%", p.Percentage),
			p.Completed,
			p.Total,
			p.Elapsed().Round(time.Millisecond).String(),
			p.Error,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// progressLine is the single-line form used while watching.
func progressLine(p client.Progress) string {
	line := fmt.Sprintf("%s  %3d%%  %d/%d  %s  %s",
		p.JobID, p.Percentage, p.Completed, p.Total, p.Status, p.Elapsed().Round(time.Second))
	if p.Error != "" {
		line += "  " + p.Error
	}
	return line
}
