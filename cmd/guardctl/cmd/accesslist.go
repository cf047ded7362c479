package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var blacklistCmd = newListCommand("blacklist", "deny")
var whitelistCmd = newListCommand("whitelist", "allow")

// newListCommand builds the list/add/remove command tree for one list kind.
// Blacklist and whitelist differ only in endpoint and wording.
func newListCommand(name, kind string) *cobra.Command {
	base := "/api/v1/gateway/" + name

	root := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Manage the IP %s", name),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List active %s entries", name),
		RunE: func(_ *cobra.Command, _ []string) error {
			client := mustClient()
			data, err := client.Get(base)
			if err != nil {
				return err
			}

			var list ListEntriesResponse
			if err := unmarshal(data, &list); err != nil {
				return err
			}
			if printStructured(list) {
				return nil
			}

			if list.Total == 0 {
				fmt.Printf("No active %s entries.\n", kind)
				return nil
			}
			table := newTable("IP", "REASON", "CREATED", "EXPIRES")
			for _, e := range list.Entries {
				table.AddRow(e.IP, e.Reason, shortTime(e.CreatedAt), ptrStr(e.ExpiresAt))
			}
			table.Flush()
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <ip-or-cidr>",
		Short: fmt.Sprintf("Add an entry to the %s", name),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := mustClient()

			hours, _ := cmd.Flags().GetFloat64("hours")
			reason, _ := cmd.Flags().GetString("reason")
			body := map[string]any{"ip": args[0], "duration_hours": hours}
			if reason != "" {
				body["reason"] = reason
			}

			data, err := client.Post(base, body)
			if err != nil {
				return err
			}

			var entry EntryResponse
			if err := unmarshal(data, &entry); err != nil {
				return err
			}
			if printStructured(entry) {
				return nil
			}
			fmt.Printf("Added %s to %s (expires: %s)\n", entry.IP, name, ptrStr(entry.ExpiresAt))
			return nil
		},
	}
	addCmd.Flags().Float64("hours", 24, "Entry lifetime in hours")
	addCmd.Flags().String("reason", "", "Operator note stored with the entry")

	removeCmd := &cobra.Command{
		Use:     "remove <ip-or-cidr>",
		Aliases: []string{"rm"},
		Short:   fmt.Sprintf("Remove an entry from the %s", name),
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client := mustClient()
			if err := client.Delete(base + "/" + args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s from %s\n", args[0], name)
			return nil
		},
	}

	root.AddCommand(listCmd)
	root.AddCommand(addCmd)
	root.AddCommand(removeCmd)
	return root
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run one rate limit evaluation against your own identity",
	Long: `test sends one synthetic evaluation through the gateway. It consumes
real quota for your identity, so repeated runs show the window draining.`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().String("path", "/", "Endpoint path to evaluate")
	testCmd.Flags().String("method", "GET", "HTTP method to evaluate")
}

func runTest(cmd *cobra.Command, _ []string) error {
	client := mustClient()

	path, _ := cmd.Flags().GetString("path")
	method, _ := cmd.Flags().GetString("method")
	data, err := client.Post("/api/v1/gateway/test-rate-limit", map[string]string{
		"path":   path,
		"method": method,
	})
	if err != nil {
		return err
	}

	var verdict VerdictResponse
	if err := unmarshal(data, &verdict); err != nil {
		return err
	}
	if printStructured(verdict) {
		return nil
	}

	fmt.Printf("Decision:  %s (%s)\n", verdict.Decision, verdict.Reason)
	if verdict.Rule.Scope != "" {
		fmt.Printf("Rule:      %s, %d per %s", verdict.Rule.Scope, verdict.Rule.Limit, verdict.Rule.Window)
		if verdict.Rule.Burst > 0 {
			fmt.Printf(" (+%d burst)", verdict.Rule.Burst)
		}
		fmt.Println()
	}
	fmt.Printf("Remaining: %s\n", strconv.Itoa(verdict.Remaining))
	if verdict.RetryAfter != "" {
		fmt.Printf("Retry in:  %s\n", verdict.RetryAfter)
	}
	return nil
}
