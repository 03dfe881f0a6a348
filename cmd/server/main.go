package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/payledger/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool   `help:"Enable debug mode."`
		EnvFile string `help:"dotenv file loaded before flags are parsed" default:".env" env:"PAYLEDGER_ENV_FILE"`
		Version kong.VersionFlag

		Server  commands.ServerCmd  `cmd:"" help:"Start the HTTP API server"`
		Import  commands.ImportCmd  `cmd:"" help:"Import a payroll workbook from local disk"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations"`
		Org     commands.OrgCmd     `cmd:"" help:"Register an organization"`
		Token   commands.TokenCmd   `cmd:"" help:"Mint a bearer token for a tenant"`
		Reset   commands.ResetCmd   `cmd:"" help:"Delete all data"`
	}
)

func main() {
	// env tags resolve during parsing, so the dotenv file is read first
	if err := godotenv.Load(envFile(os.Args[1:])); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("failed to load env file: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("payledger"),
		kong.Description("Payroll import reconciliation and salary history ledger."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}

// envFile finds --env-file before kong has parsed the command line.
func envFile(args []string) string {
	for i, arg := range args {
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, "--env-file="); ok && v != "" {
			return v
		}
	}
	if v := os.Getenv("PAYLEDGER_ENV_FILE"); v != "" {
		return v
	}
	return ".env"
}
