package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/go-drift/danmaku/pkg/item"
)

type inspectRow struct {
	TimeMs   int64  `json:"timeMs"`
	Type     string `json:"type"`
	Color    string `json:"color"`
	Priority int    `json:"priority,omitempty"`
	Text     string `json:"text"`
}

func addInspect(topLevel *cobra.Command) {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the comments in a YAML, JSON or Bilibili XML file.",
		Example: `
danmaku inspect comments.yaml
danmaku inspect --limit 20 danmaku.xml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadDataset(args[0])
			if err != nil {
				return err
			}
			rows := inspectRows(ds, limit)
			out := cmd.OutOrStdout()

			if asJSON {
				b, err := json.MarshalIndent(struct {
					Version string       `json:"version"`
					Total   int          `json:"total"`
					Skipped int          `json:"skipped"`
					Items   []inspectRow `json:"items"`
				}{ds.Version, len(ds.Items), ds.Skipped, rows}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			}

			bold := color.New(color.Bold)
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.MaxColWidth = 60
			tbl.AddRow(bold.Sprint("TIME"), bold.Sprint("TYPE"), bold.Sprint("COLOR"), bold.Sprint("PRIO"), bold.Sprint("TEXT"))
			for _, r := range rows {
				tbl.AddRow(formatMs(r.TimeMs), r.Type, r.Color, r.Priority, r.Text)
			}
			tbl.RightAlign(0)
			_, _ = fmt.Fprintln(out, tbl)

			faint := color.New(color.Faint)
			_, _ = faint.Fprintf(out, "%d comments, %d skipped, version %s\n", len(ds.Items), ds.Skipped, ds.Version)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many comments (0 for all).")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON.")
	topLevel.AddCommand(cmd)
}

func inspectRows(ds *item.Dataset, limit int) []inspectRow {
	items := ds.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	rows := make([]inspectRow, len(items))
	for i, it := range items {
		rows[i] = inspectRow{
			TimeMs:   it.TimeMs,
			Type:     it.Type.String(),
			Color:    it.Color.Hex(),
			Priority: it.Priority,
			Text:     it.Text,
		}
	}
	return rows
}

// formatMs renders a media position as m:ss.mmm.
func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d.%03d", int(d.Minutes()), int(d.Seconds())%60, ms%1000)
}
