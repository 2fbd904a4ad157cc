/*
main.go - collectctl, the command-line companion of the collection engine

PURPOSE:
  Inspects schedules without running the server: preview the dates a
  frequency produces, classify a time of day, and print agreement
  timelines or reward balances straight from the database.

COMMANDS:
  preview     Next occurrence dates for a frequency
  period      Period of a time of day (and whether now is inside it)
  timeline    Timeline of a stored agreement, or of an agreement JSON file
  agreements  List stored agreements
  rewards     Reward balance and history of an entity

EXAMPLES:
  collectctl preview --frequency monthly --start 2025-01-31 -n 4
  collectctl period 19:30 --date 2025-01-06
  collectctl timeline --file agreement.json --accept
  collectctl timeline 5f0c... --db ./data/collection.db
*/
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version  kong.VersionFlag
	Timezone string `help:"Time zone used for 'today'." default:"UTC" env:"ENGINE_TIMEZONE"`

	Preview    PreviewCmd    `cmd:"" help:"Preview occurrence dates for a frequency."`
	Period     PeriodCmd     `cmd:"" help:"Classify a time of day into a period."`
	Timeline   TimelineCmd   `cmd:"" help:"Show the timeline of an agreement."`
	Agreements AgreementsCmd `cmd:"" help:"List stored agreements."`
	Rewards    RewardsCmd    `cmd:"" help:"Show reward points of an entity."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("collectctl"),
		kong.Description("Recurring recyclable collection toolkit"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	appCtx, err := newContext(CLI.Timezone, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
