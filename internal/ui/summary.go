package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/Warpcall/internal/call"
)

// CallSummaryView renders the end-of-call report.
func CallSummaryView(s call.Summary) string {
	t := table.NewWriter()
	t.SetTitle("📊 Call Summary")
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}

	role := "guest"
	if s.IsHost {
		role = "host"
	}

	status := IconSuccess + " " + s.Status
	if s.Err != nil {
		status = IconError + " " + s.Status
	}

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Status", status},
		{"Room", s.Room},
		{"Role", role},
		{"Talk Time", formatTalkTime(s.Connected)},
	})
	if s.RecordPath != "" {
		t.AppendRow(table.Row{"Recording", fmt.Sprintf("%s (%d packets)", s.RecordPath, s.RecordedPackets)})
	}
	if s.Err != nil {
		t.AppendRow(table.Row{"Error", rootCause(s.Err)})
	}
	return t.Render()
}

func RenderCallSummary(s call.Summary) {
	fmt.Println()
	fmt.Println(CallSummaryView(s))
}

func formatTalkTime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func rootCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
