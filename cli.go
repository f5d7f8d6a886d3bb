package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"boletos/billing"
)

// Applicator defines the interface for the core application logic.
// This allows the CLI to be tested independently of the main app implementation.
type Applicator interface {
	SetDebug(debug bool)
	Serve(ctx context.Context, cfgPath string, development bool) error
	Sync(ctx context.Context, cfgPath string, req billing.SyncRequest) error
	Check(ctx context.Context, cfgPath, key string) error
	Clients(ctx context.Context, cfgPath, squad string) error
	History(ctx context.Context, cfgPath, search string, limit int) error
	Templates(dir string) error
}

// BuildCLI creates the full CLI command structure for the application.
// It injects the core application logic (the Applicator) into the command actions.
func BuildCLI(app Applicator) *cli.Command {

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.yaml",
		Usage:   "path to the configuration file",
	}

	platformFlags := func(suffix string) []cli.Flag {
		platform := "platform " + strings.ToUpper(suffix)
		return []cli.Flag{
			&cli.StringFlag{Name: "method-" + suffix, Usage: platform + " payment method", Required: true},
			&cli.StringFlag{Name: "credit-" + suffix, Usage: platform + " current credit, eg 'R$ 1.500,00'"},
			&cli.StringFlag{Name: "date-" + suffix, Usage: platform + " balance date (DD/MM)"},
			&cli.StringFlag{Name: "spend-" + suffix, Usage: platform + " daily spend"},
		}
	}

	platformInput := func(c *cli.Command, suffix string) billing.PlatformInput {
		return billing.PlatformInput{
			Method: c.String("method-" + suffix),
			Credit: c.String("credit-" + suffix),
			Date:   c.String("date-" + suffix),
			Spend:  c.String("spend-" + suffix),
		}
	}

	serveCmd := &cli.Command{
		Name:  "serve",
		Usage: "Run the web interface",
		Flags: []cli.Flag{
			configFlag,
			&cli.BoolFlag{Name: "dev", Usage: "reload templates from web.templates_path when they change"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Serve(ctx, c.String("config"), c.Bool("dev"))
		},
	}

	syncCmd := &cli.Command{
		Name:      "sync",
		Usage:     "Write the inputs of a client and show the recomputed diagnostic",
		ArgsUsage: "KEY",
		Flags:     append(append([]cli.Flag{configFlag}, platformFlags("a")...), platformFlags("b")...),
		Action: func(ctx context.Context, c *cli.Command) error {
			key, err := keyArg(c)
			if err != nil {
				return err
			}
			return app.Sync(ctx, c.String("config"), billing.SyncRequest{
				Key:       key,
				PlatformA: platformInput(c, "a"),
				PlatformB: platformInput(c, "b"),
			})
		},
	}

	checkCmd := &cli.Command{
		Name:      "check",
		Usage:     "Show the diagnostic of a client without writing to the spreadsheet",
		ArgsUsage: "KEY",
		Flags:     []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			key, err := keyArg(c)
			if err != nil {
				return err
			}
			return app.Check(ctx, c.String("config"), key)
		},
	}

	clientsCmd := &cli.Command{
		Name:  "clients",
		Usage: "List the squads and their clients",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "squad", Aliases: []string{"s"}, Usage: "only list clients of this squad"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Clients(ctx, c.String("config"), c.String("squad"))
		},
	}

	historyCmd := &cli.Command{
		Name:  "history",
		Usage: "List recorded sync attempts",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "search", Usage: "filter by key, client or squad"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of attempts to show"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			limit := c.Int("limit")
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}
			return app.History(ctx, c.String("config"), c.String("search"), limit)
		},
	}

	templatesCmd := &cli.Command{
		Name:      "templates",
		Usage:     "Write the built-in web templates and static files to a directory for editing",
		ArgsUsage: "DIR",
		Action: func(ctx context.Context, c *cli.Command) error {
			dir := c.Args().First()
			if dir == "" {
				dir = "."
			}
			return app.Templates(dir)
		},
	}

	rootCmd := &cli.Command{
		Name:  "boletos",
		Usage: "Sync ad-spend inputs to the billing spreadsheet and check the result",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			app.SetDebug(c.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{serveCmd, syncCmd, checkCmd, clientsCmd, historyCmd, templatesCmd},
	}

	return rootCmd
}

// keyArg returns the single KEY argument of a command.
func keyArg(c *cli.Command) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("expected one KEY argument, got %d", c.Args().Len())
	}
	key := strings.TrimSpace(c.Args().First())
	if key == "" {
		return "", fmt.Errorf("empty KEY argument")
	}
	return key, nil
}
