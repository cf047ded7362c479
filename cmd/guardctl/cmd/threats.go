package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var threatsCmd = &cobra.Command{
	Use:   "threats",
	Short: "Show threat analysis for a recent window",
	RunE:  runThreats,
}

func init() {
	threatsCmd.Flags().Int("hours", 24, "Analysis window in hours")
}

func runThreats(cmd *cobra.Command, _ []string) error {
	client := mustClient()

	hours, _ := cmd.Flags().GetInt("hours")
	data, err := client.Get(fmt.Sprintf("/api/v1/gateway/threats/analysis?hours=%d", hours))
	if err != nil {
		return err
	}

	var analysis AnalysisResponse
	if err := unmarshal(data, &analysis); err != nil {
		return err
	}
	if printStructured(analysis) {
		return nil
	}

	fmt.Printf("Threat analysis, last %dh\n", analysis.WindowHours)
	fmt.Printf("  Level:      %s\n", analysis.Level)
	fmt.Printf("  Total:      %d events\n", analysis.TotalThreats)
	fmt.Printf("  Unique IPs: %d\n", analysis.UniqueIPs)
	for kind, count := range analysis.CountsByKind {
		fmt.Printf("  %-24s %d\n", kind+":", count)
	}

	if len(analysis.TopThreatIPs) == 0 {
		return nil
	}
	fmt.Println("\nTop offenders:")
	table := newTable("IP", "EVENTS", "LAST SEEN")
	for _, ip := range analysis.TopThreatIPs {
		table.AddRow(ip.IP, strconv.Itoa(ip.Count), shortTime(ip.LastSeen))
	}
	table.Flush()
	return nil
}
