package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gateway statistics",
	RunE:  runStats,
}

func runStats(_ *cobra.Command, _ []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/gateway/stats")
	if err != nil {
		return err
	}

	var stats StatsResponse
	if err := unmarshal(data, &stats); err != nil {
		return err
	}
	if printStructured(stats) {
		return nil
	}

	status := "connected"
	if !stats.StoreConnected {
		status = "DISCONNECTED"
	}
	fmt.Printf("GuardGate\n")
	fmt.Printf("  Store:        %s\n", status)
	fmt.Printf("  Threat level: %s (%d events in 24h)\n", stats.ThreatLevel, stats.Threats24h)
	fmt.Printf("  Blacklist:    %d entries\n", stats.BlacklistSize)
	fmt.Printf("  Whitelist:    %d entries\n", stats.WhitelistSize)
	fmt.Println("\nRules:")

	table := newTable("SCOPE", "PATTERN", "LIMIT", "WINDOW", "BURST")
	table.AddRow(stats.DefaultRule.Scope, "-",
		strconv.Itoa(stats.DefaultRule.Limit), stats.DefaultRule.Window,
		strconv.Itoa(stats.DefaultRule.Burst))
	for _, r := range stats.EndpointRules {
		table.AddRow(r.Scope, r.Pattern, strconv.Itoa(r.Limit), r.Window, strconv.Itoa(r.Burst))
	}
	table.Flush()
	return nil
}
