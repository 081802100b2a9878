package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/valuation"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&validateCmd{out: out},
		&holdingCmd{out: out},
		&sortCmd{out: out},
	}
}

func readJSON(file string, v any) error {
	if file == "" {
		return fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("could not parse %s: %w", file, err)
	}
	return nil
}

// validateRequest mirrors the body of POST /api/v1/operations/validate.
type validateRequest struct {
	Existing []consistency.Event `json:"existing"`
	Action   consistency.Action  `json:"action"`
	Proposed consistency.Event   `json:"proposed"`
	TargetID string              `json:"target_id"`
}

type validateCmd struct {
	out       io.Writer
	file      string
	epsilon   float64
	tolerate  bool
	showTrail bool
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check that a mutation keeps the holding non-negative" }
func (*validateCmd) Usage() string {
	return `finanzctl validate -file <request.json> [-epsilon e] [-tolerate] [-trail]

  Applies the proposed create, edit or delete to the history and reports the
  first date the holding would go negative. Exits 1 on a violation.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "JSON file with existing, action, proposed and target_id")
	f.Float64Var(&c.epsilon, "epsilon", consistency.DefaultEpsilon, "tolerance below zero before a balance counts as negative")
	f.BoolVar(&c.tolerate, "tolerate", false, "treat an unknown edit or delete target as a no-op")
	f.BoolVar(&c.showTrail, "trail", false, "print the replayed balances on a violation")
}

func (c *validateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	var req validateRequest
	if err := readJSON(c.file, &req); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	validator := consistency.NewValidator(zap.NewNop(), consistency.Options{
		Epsilon:               c.epsilon,
		TolerateMissingTarget: c.tolerate,
	})
	violation, err := validator.Validate(req.Existing, req.Action, req.Proposed, req.TargetID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if violation == nil {
		fmt.Fprintln(c.out, "OK")
		return subcommands.ExitSuccess
	}

	fmt.Fprintln(c.out, violation.Message())
	if c.showTrail {
		printBalances(c.out, consistency.Replay(violation.Timeline))
	}
	return subcommands.ExitFailure
}

type holdingCmd struct {
	out  io.Writer
	file string
}

func (*holdingCmd) Name() string     { return "holding" }
func (*holdingCmd) Synopsis() string { return "replay a history and print the running balance" }
func (*holdingCmd) Usage() string {
	return `finanzctl holding -file <events.json>

  Reads a JSON array of operations and prints the holding after each one,
  in chronological order.
`
}

func (c *holdingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "JSON array of operations")
}

func (c *holdingCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	var events []consistency.Event
	if err := readJSON(c.file, &events); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	printBalances(c.out, consistency.Replay(events))
	return subcommands.ExitSuccess
}

func printBalances(out io.Writer, points []consistency.BalancePoint) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tID\tKIND\tQUANTITY\tBALANCE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\n",
			p.Event.Timestamp.Format("2006-01-02"), p.Event.ID, p.Event.Kind, p.Event.Quantity, p.Balance)
	}
	tw.Flush()
}

// valuationFile is a portfolio snapshot as saved from the backend.
type valuationFile struct {
	Positions []valuation.Position `json:"positions"`
	Totals    valuation.Totals     `json:"totals"`
}

type sortCmd struct {
	out     io.Writer
	file    string
	display string
	key     string
	dir     string
	query   string
}

func (*sortCmd) Name() string     { return "sort" }
func (*sortCmd) Synopsis() string { return "render a valuation in one currency and sort it" }
func (*sortCmd) Usage() string {
	return `finanzctl sort -file <valuation.json> [-display ARS|USD] [-key k] [-dir asc|desc] [-q text]

  Converts every position to the display currency using the rate implied by
  the totals and prints them ordered by key. Amounts that need a missing
  rate print as N/D.
`
}

func (c *sortCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "JSON file with positions and totals")
	f.StringVar(&c.display, "display", "ARS", "display currency (ARS, USD)")
	f.StringVar(&c.key, "key", string(valuation.KeyCurrentValue), "sort key")
	f.StringVar(&c.dir, "dir", "desc", "sort direction (asc, desc)")
	f.StringVar(&c.query, "q", "", "only symbols containing this text")
}

func (c *sortCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	display, err := valuation.ParseDisplay(c.display)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	key, err := valuation.ParseSortKey(c.key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	dir, err := valuation.ParseDirection(c.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	var in valuationFile
	if err := readJSON(c.file, &in); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	res := valuation.FilterAndSort(in.Positions, valuation.Filter{Query: c.query}, display, in.Totals, key, dir)

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tCURRENCY\tQUANTITY\tPRICE\tTOTAL COST\tVALUE\tPERF %\t")
	for _, row := range res.Rows {
		price, cost, value := "N/D", "N/D", "N/D"
		if !row.Degraded {
			price = valuation.FormatAmount(row.Price, display)
			cost = valuation.FormatAmount(row.TotalCost, display)
			value = valuation.FormatAmount(row.CurrentValue, display)
		}
		perf := "-"
		if row.AverageCost > 0 {
			perf = fmt.Sprintf("%.2f", row.PerformancePct*100)
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%s\t%s\t\n",
			row.Symbol, row.Currency, row.Quantity, price, cost, value, perf)
	}
	tw.Flush()
	if res.Degraded {
		fmt.Fprintln(c.out, "warning: no exchange rate in the totals, some amounts are unavailable")
	}
	return subcommands.ExitSuccess
}
