package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"estatecrm/internal/amortization"
)

const dateLayout = "2006-01-02"

type amortizeOptions struct {
	principal string
	rate      string
	periods   int
	frequency string
	start     string
	output    string
	schedule  bool
}

// report is the printable result of one calculation. Amounts are fixed
// two-place strings so every output format shows the same figures.
type report struct {
	Principal       string      `json:"principal" yaml:"principal"`
	AnnualRate      string      `json:"annual_rate" yaml:"annual_rate"`
	TermPeriods     int         `json:"term_periods" yaml:"term_periods"`
	Frequency       string      `json:"frequency" yaml:"frequency"`
	StartDate       string      `json:"start_date" yaml:"start_date"`
	PeriodicPayment string      `json:"periodic_payment" yaml:"periodic_payment"`
	TotalInterest   string      `json:"total_interest" yaml:"total_interest"`
	EndDate         string      `json:"end_date" yaml:"end_date"`
	Schedule        []reportRow `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

type reportRow struct {
	Period    int    `json:"period" yaml:"period"`
	DueDate   string `json:"due_date" yaml:"due_date"`
	Payment   string `json:"payment" yaml:"payment"`
	Interest  string `json:"interest" yaml:"interest"`
	Principal string `json:"principal" yaml:"principal"`
	Balance   string `json:"remaining_balance" yaml:"remaining_balance"`
}

func newAmortizeCmd() *cobra.Command {
	var opts amortizeOptions
	cmd := &cobra.Command{
		Use:   "amortize",
		Short: "Compute the payment, total interest and schedule of a loan",
		Example: `  crmctl amortize --principal 100000 --rate 6 --periods 12
  crmctl amortize --principal 250000 --rate 4.5 --periods 80 --frequency quarterly --schedule -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := opts.terms(time.Now())
			if err != nil {
				return err
			}
			rep, err := buildReport(terms, opts.schedule)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rep, opts.output)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.principal, "principal", "", "amount borrowed")
	f.StringVar(&opts.rate, "rate", "", "annual interest rate in percent")
	f.IntVar(&opts.periods, "periods", 0, "number of payment periods")
	f.StringVar(&opts.frequency, "frequency", string(amortization.Monthly), "payment frequency (monthly, quarterly, annually)")
	f.StringVar(&opts.start, "start", "", "start date as YYYY-MM-DD (default today)")
	f.StringVarP(&opts.output, "output", "o", "table", "output format (table, json, yaml)")
	f.BoolVar(&opts.schedule, "schedule", false, "include the period-by-period schedule")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("rate")
	_ = cmd.MarkFlagRequired("periods")
	return cmd
}

func (o amortizeOptions) terms(now time.Time) (amortization.Terms, error) {
	principal, err := decimal.NewFromString(strings.ReplaceAll(o.principal, ",", ""))
	if err != nil {
		return amortization.Terms{}, fmt.Errorf("principal %q: %w", o.principal, amortization.ErrInvalidAmount)
	}
	rate, err := decimal.NewFromString(strings.TrimSuffix(o.rate, "%"))
	if err != nil {
		return amortization.Terms{}, fmt.Errorf("rate %q: %w", o.rate, amortization.ErrInvalidRate)
	}
	freq, err := amortization.ParseFrequency(o.frequency)
	if err != nil {
		return amortization.Terms{}, err
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if o.start != "" {
		if start, err = time.Parse(dateLayout, o.start); err != nil {
			return amortization.Terms{}, fmt.Errorf("start date %q: must be YYYY-MM-DD", o.start)
		}
	}
	return amortization.Terms{
		Principal:   principal,
		AnnualRate:  rate,
		TermPeriods: o.periods,
		Frequency:   freq,
		StartDate:   start,
	}, nil
}

func buildReport(t amortization.Terms, withSchedule bool) (report, error) {
	sum, err := t.Summarize()
	if err != nil {
		return report{}, err
	}
	rep := report{
		Principal:       t.Principal.StringFixed(amortization.MinorUnitPlaces),
		AnnualRate:      t.AnnualRate.String(),
		TermPeriods:     t.TermPeriods,
		Frequency:       string(t.Frequency),
		StartDate:       t.StartDate.Format(dateLayout),
		PeriodicPayment: sum.PeriodicPayment.StringFixed(amortization.MinorUnitPlaces),
		TotalInterest:   sum.TotalInterest.StringFixed(amortization.MinorUnitPlaces),
		EndDate:         sum.EndDate.Format(dateLayout),
	}
	if !withSchedule {
		return rep, nil
	}

	s, err := t.Schedule()
	if err != nil {
		return report{}, err
	}
	for _, e := range s.Entries() {
		rep.Schedule = append(rep.Schedule, reportRow{
			Period:    e.Period,
			DueDate:   e.DueDate.Format(dateLayout),
			Payment:   e.Payment.StringFixed(amortization.MinorUnitPlaces),
			Interest:  e.Interest.StringFixed(amortization.MinorUnitPlaces),
			Principal: e.Principal.StringFixed(amortization.MinorUnitPlaces),
			Balance:   e.RemainingBalance.StringFixed(amortization.MinorUnitPlaces),
		})
	}
	return rep, nil
}

func writeReport(w io.Writer, rep report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return writeTable(w, rep)
	default:
		return fmt.Errorf("unknown output format %q: must be table, json or yaml", format)
	}
}

func writeTable(w io.Writer, rep report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Principal\t%s\t\n", amount(rep.Principal))
	fmt.Fprintf(tw, "Annual rate\t%s%%\t\n", rep.AnnualRate)
	fmt.Fprintf(tw, "Term\t%d %s\t\n", rep.TermPeriods, rep.Frequency)
	fmt.Fprintf(tw, "Periodic payment\t%s\t\n", amount(rep.PeriodicPayment))
	fmt.Fprintf(tw, "Total interest\t%s\t\n", amount(rep.TotalInterest))
	fmt.Fprintf(tw, "Final payment\t%s\t\n", rep.EndDate)
	if len(rep.Schedule) > 0 {
		fmt.Fprintln(tw, "\t\t")
		fmt.Fprintln(tw, "#\tDue\tPayment\tInterest\tPrincipal\tBalance\t")
		for _, r := range rep.Schedule {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
				humanize.Ordinal(r.Period), r.DueDate,
				amount(r.Payment), amount(r.Interest), amount(r.Principal), amount(r.Balance))
		}
	}
	return tw.Flush()
}

// amount adds thousands separators to a fixed two-place amount.
func amount(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	f, _ := d.Float64()
	return humanize.FormatFloat("#,###.##", f)
}
