package cmd

import (
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kasuboski/showsync/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRuns  bool
	historyRun   string
)

// historyCmd prints the sync journal
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "show recent transfers",
	Long:  `show recent transfers from the sync journal, or the runs that made them`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled {
			return errors.New("the journal is disabled, set journal.enabled to record history")
		}

		ctx := cmd.Context()
		journal, err := openJournal(ctx, cfg.Journal)
		if err != nil {
			return err
		}
		defer journal.Close()

		out := cmd.OutOrStdout()
		now := time.Now()

		if historyRuns {
			runs, err := journal.ListRuns(ctx, historyLimit)
			if err != nil {
				return err
			}
			writeRuns(out, runs, now)
			return nil
		}

		var transfers []*storage.Transfer
		if historyRun != "" {
			if _, err := journal.GetRun(ctx, historyRun); err != nil {
				return fmt.Errorf("run %s: %w", historyRun, err)
			}
			transfers, err = journal.ListTransfersByRun(ctx, historyRun)
		} else {
			transfers, err = journal.ListTransfers(ctx, historyLimit)
		}
		if err != nil {
			return err
		}

		writeTransfers(out, transfers, now)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to show, 0 for all")
	historyCmd.Flags().BoolVar(&historyRuns, "runs", false, "list runs instead of transfers")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "list the transfers of one run")
	historyCmd.MarkFlagsMutuallyExclusive("runs", "run")

	rootCmd.AddCommand(historyCmd)
}

func writeTransfers(w io.Writer, transfers []*storage.Transfer, now time.Time) {
	tw := newTable(w, "when", "state", "size", "episode", "file")
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft}})

	for _, t := range transfers {
		ep := "-"
		if t.Season != nil && t.Episode != nil {
			ep = fmt.Sprintf("%dx%02d", *t.Season, *t.Episode)
		}

		tw.AppendRow(table.Row{
			humanize.RelTime(t.CreatedAt, now, "ago", "from now"),
			withError(string(t.State), t.Error),
			humanize.Bytes(uint64(t.Bytes)),
			ep,
			path.Base(t.Remote),
		})
	}

	tw.Render()
}

func writeRuns(w io.Writer, runs []*storage.Run, now time.Time) {
	tw := newTable(w, "id", "when", "kind", "state", "target")

	for _, r := range runs {
		target := r.Target
		if target == "" {
			target = "-"
		}

		tw.AppendRow(table.Row{
			r.ID,
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			r.Kind,
			withError(string(r.State), r.Error),
			target,
		})
	}

	tw.Render()
}

func newTable(w io.Writer, headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(headers))
	for _, h := range headers {
		header = append(header, h)
	}
	tw.AppendHeader(header)
	return tw
}

func withError(state, msg string) string {
	if msg == "" {
		return state
	}
	return state + ": " + msg
}
