// Command ledger-report prints the reconciled items and metrics of a scope
// as JSON.
//
//	ledger-report -user alice -month 2025-04
//	ledger-report -user alice -board b1 -from 2025-01 -to 2025-06
//	ledger-report -user alice -from 2025-01 -to 2025-03 -sheet
//
// With -sheet every reconciled month is also appended to a Google Sheets
// tab; see internal/sheets/google for the environment it reads.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"finboard/internal/cli"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/sheets"
	"finboard/internal/sheets/google"
)

type monthReport struct {
	Month      core.Month         `json:"month"`
	Items      []core.FinanceItem `json:"items"`
	Synthetic  int                `json:"synthetic"`
	Suppressed int                `json:"suppressed"`
	Degraded   bool               `json:"degraded,omitempty"`
}

type report struct {
	User    string                 `json:"user"`
	BoardID string                 `json:"board_id,omitempty"`
	From    core.Month             `json:"from"`
	To      core.Month             `json:"to"`
	Months  []monthReport          `json:"months"`
	Metrics services.MetricsReport `json:"metrics"`
}

func main() {
	var (
		user    = flag.String("user", "", "user id the report is read as (required)")
		boardID = flag.String("board", "", "board id; empty reports the personal ledger")
		month   = flag.String("month", "", "single month YYYY-MM; defaults to the current month")
		from    = flag.String("from", "", "first month YYYY-MM of a range")
		to      = flag.String("to", "", "last month YYYY-MM of a range")
		toSheet = flag.Bool("sheet", false, "also append each month to Google Sheets")
	)
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "ledger-report: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, logger := cli.Setup(log.ComponentReport, os.Stderr)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	res := cli.OpenBackend(ctx, logger, cfg)
	defer res.Close()

	ledger := services.NewLedgerService(res.Store, services.LedgerOptions{
		Engine: services.MetricsEngine{
			OtherCategory:       cfg.OtherCategoryLabel,
			UnknownCollaborator: cfg.UnknownCollaboratorLabel,
		},
		Location:  cfg.Location(),
		MaxMonths: cfg.MaxMetricsMonths,
		Logger:    logger,
	})

	start, end, err := monthRange(ledger.Today().MonthOf(), *month, *from, *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger-report: %v\n", err)
		os.Exit(2)
	}

	scope := core.PersonalScope(*user)
	if *boardID != "" {
		scope = core.BoardScope(*boardID)
	}

	out, err := build(ctx, ledger, *user, scope, start, end)
	if err != nil {
		logger.Error("Report failed", log.FieldError, err, log.FieldUserID, *user)
		res.Close()
		os.Exit(1)
	}
	out.BoardID = *boardID

	if *toSheet {
		exporter, err := google.NewFromEnv(ctx, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			res.Close()
			os.Exit(1)
		}
		if err := export(ctx, exporter, out, logger); err != nil {
			logger.Error("Export failed", log.FieldError, err)
			res.Close()
			os.Exit(1)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("Failed to write report", log.FieldError, err)
		res.Close()
		os.Exit(1)
	}
}

// monthRange resolves the flags into an inclusive month range. -month wins
// over -from/-to; a lone -from or -to is a single month.
func monthRange(current core.Month, month, from, to string) (core.Month, core.Month, error) {
	if month != "" {
		m, err := core.ParseMonth(month)
		if err != nil {
			return core.Month{}, core.Month{}, fmt.Errorf("invalid -month: %w", err)
		}
		return m, m, nil
	}
	start, end := current, current
	if from != "" {
		m, err := core.ParseMonth(from)
		if err != nil {
			return core.Month{}, core.Month{}, fmt.Errorf("invalid -from: %w", err)
		}
		start, end = m, m
	}
	if to != "" {
		m, err := core.ParseMonth(to)
		if err != nil {
			return core.Month{}, core.Month{}, fmt.Errorf("invalid -to: %w", err)
		}
		end = m
		if from == "" {
			start = m
		}
	}
	return start, end, nil
}

func build(ctx context.Context, ledger *services.LedgerService, user string, scope core.Scope, from, to core.Month) (report, error) {
	months, metrics, err := ledger.Range(ctx, user, scope, from, to)
	if err != nil {
		return report{}, err
	}
	out := report{User: user, From: from, To: to, Metrics: metrics}
	for _, rec := range months {
		out.Months = append(out.Months, monthReport{
			Month:      rec.Month,
			Items:      rec.Items,
			Synthetic:  rec.Synthetic,
			Suppressed: rec.Suppressed,
			Degraded:   rec.Degraded(),
		})
	}
	return out, nil
}

// export appends every non-empty month of the report to the tab of its
// scope. The tab label is the board id, or the user for personal reports.
func export(ctx context.Context, exporter sheets.MonthExporter, out report, logger *log.Logger) error {
	label := out.User
	if out.BoardID != "" {
		label = out.BoardID
	}
	for _, m := range out.Months {
		if m.Degraded {
			logger.WarnContext(ctx, "Exporting partial month", log.FieldMonth, m.Month.String())
		}
		ref, err := exporter.ExportMonth(ctx, label, m.Month, m.Items)
		if errors.Is(err, sheets.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", m.Month, err)
		}
		logger.DebugContext(ctx, "Month exported", log.FieldMonth, m.Month.String(), "range", ref)
	}
	return nil
}
