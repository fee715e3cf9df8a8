package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"forecourt/backend/internal/app"
	"forecourt/backend/internal/config"
	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/logging"
	"forecourt/backend/internal/service"
)

// opener returns a ready service and a cleanup func.
type opener func(ctx context.Context) (*service.Service, func(), error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(openFromEnv).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*service.Service, func(), error) {
	cfg := config.Load()
	logger := logging.NewWithOutput(cfg.LogLevel, os.Stderr)

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	a, err := app.Build(startCtx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "first date, YYYY-MM-DD (default today)"},
		&cli.StringFlag{Name: "to", Usage: "last date, YYYY-MM-DD (default today)"},
	}
}

func newApp(open opener) *cli.App {
	// with runs fn against an opened service and prints its result as JSON.
	with := func(fn func(c *cli.Context, svc *service.Service) (any, error)) cli.ActionFunc {
		return func(c *cli.Context) error {
			svc, closeFn, err := open(c.Context)
			if err != nil {
				return err
			}
			defer closeFn()
			out, err := fn(c, svc)
			if err != nil || out == nil {
				return err
			}
			return printJSON(c.App.Writer, out)
		}
	}

	return &cli.App{
		Name:  "reportctl",
		Usage: "forecourt back-office reports",
		Commands: []*cli.Command{
			{
				Name:  "refresh",
				Usage: "rebuild and cache the month-to-date dashboard",
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					return svc.RefreshDashboard(c.Context)
				}),
			},
			{
				Name:  "dashboard",
				Usage: "print the cached dashboard, refreshing on a miss",
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					return svc.Dashboard(c.Context)
				}),
			},
			{
				Name:  "summary",
				Usage: "fold sales over a date range",
				Flags: rangeFlags(),
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					return svc.Summary(c.Context, c.String("from"), c.String("to"))
				}),
			},
			{
				Name:  "report",
				Usage: "daily sales reconciliation per date",
				Flags: rangeFlags(),
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					return svc.DailySalesReport(c.Context, c.String("from"), c.String("to"))
				}),
			},
			{
				Name:  "save",
				Usage: "capture meter readings and takings for a date",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Required: true},
					&cli.StringFlag{Name: "ulp-open"},
					&cli.StringFlag{Name: "ulp-close"},
					&cli.StringFlag{Name: "d50-open"},
					&cli.StringFlag{Name: "d50-close"},
					&cli.StringFlag{Name: "actual-pos"},
					&cli.StringFlag{Name: "cash"},
					&cli.StringFlag{Name: "cards"},
					&cli.StringFlag{Name: "expenses"},
					&cli.StringFlag{Name: "comments"},
				},
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					entry, err := entryFromFlags(c)
					if err != nil {
						return nil, err
					}
					return svc.SaveDailySale(c.Context, entry)
				}),
			},
			{
				Name:  "rates",
				Usage: "fuel rates",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "rates in force today",
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							return svc.CurrentRates(c.Context)
						}),
					},
					{
						Name:  "set",
						Usage: "record new rates from a start date",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "start"},
							&cli.StringFlag{Name: "ulp"},
							&cli.StringFlag{Name: "d50"},
						},
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							req := domain.FuelRateRequest{StartDate: c.String("start")}
							var err error
							if req.ULP, err = decimalFlag(c, "ulp"); err != nil {
								return nil, err
							}
							if req.D50, err = decimalFlag(c, "d50"); err != nil {
								return nil, err
							}
							return svc.SaveFuelRates(c.Context, req)
						}),
					},
				},
			},
			{
				Name:  "export",
				Usage: "write the daily sales report as xlsx or csv",
				Flags: append(rangeFlags(),
					&cli.StringFlag{Name: "format", Value: "xlsx"},
					&cli.StringFlag{Name: "out", Value: "-", Usage: "output file, - for stdout"},
				),
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					w := c.App.Writer
					if path := c.String("out"); path != "-" {
						f, err := os.Create(path)
						if err != nil {
							return nil, err
						}
						defer f.Close()
						w = f
					}
					return nil, svc.ExportDailySales(c.Context, w, c.String("format"), c.String("from"), c.String("to"))
				}),
			},
			{
				Name:  "totalisers",
				Usage: "pump totaliser readings printed on the audit log",
				Flags: []cli.Flag{&cli.StringFlag{Name: "date"}},
				Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
					return svc.Totalisers(c.Context, c.String("date"))
				}),
			},
			{
				Name:  "slips",
				Usage: "slip drill-downs",
				Subcommands: []*cli.Command{
					{
						Name:  "fuel",
						Flags: rangeFlags(),
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							return svc.FuelSlips(c.Context, c.String("from"), c.String("to"))
						}),
					},
					{
						Name:  "receipts",
						Flags: append(rangeFlags(), &cli.IntFlag{Name: "terminal", Value: domain.TerminalShop2}),
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							return svc.Receipts(c.Context, c.Int("terminal"), c.String("from"), c.String("to"))
						}),
					},
					{
						Name:  "most-sold",
						Flags: rangeFlags(),
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							return svc.MostSold(c.Context, c.String("from"), c.String("to"))
						}),
					},
					{
						Name:  "returns",
						Flags: rangeFlags(),
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							return svc.ReturnSlips(c.Context, c.String("from"), c.String("to"))
						}),
					},
					{
						Name:  "audit",
						Flags: append(rangeFlags(), &cli.StringFlag{Name: "search"}),
						Action: with(func(c *cli.Context, svc *service.Service) (any, error) {
							return svc.AuditSlips(c.Context, c.String("from"), c.String("to"), c.String("search"))
						}),
					},
				},
			},
		},
	}
}

func entryFromFlags(c *cli.Context) (domain.DailySaleEntry, error) {
	entry := domain.DailySaleEntry{ReportDate: c.String("date")}
	fields := []struct {
		flag string
		dst  **decimal.Decimal
	}{
		{"ulp-open", &entry.ULPOpening},
		{"ulp-close", &entry.ULPClosing},
		{"d50-open", &entry.D50Opening},
		{"d50-close", &entry.D50Closing},
		{"actual-pos", &entry.ActualPOS},
		{"cash", &entry.Cash},
		{"cards", &entry.Cards},
		{"expenses", &entry.Expenses},
	}
	for _, f := range fields {
		v, err := decimalFlag(c, f.flag)
		if err != nil {
			return domain.DailySaleEntry{}, err
		}
		*f.dst = v
	}
	if c.IsSet("comments") {
		comments := c.String("comments")
		entry.Comments = &comments
	}
	return entry, nil
}

// decimalFlag is nil when the flag was not given.
func decimalFlag(c *cli.Context, name string) (*decimal.Decimal, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	d, err := decimal.NewFromString(c.String(name))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
