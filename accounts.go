package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List configured accounts and their status",
		Long: `List every configured account. Each enabled account is probed with
its credential; a rejected credential shows as inactive rather than
failing the command.`,
		Args: cobra.NoArgs,
		RunE: runAccounts,
	}
}

// accountStatus is the JSON output schema for one account.
type accountStatus struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
	Default  bool   `json:"default"`
	Active   bool   `json:"active"`
	Display  string `json:"display_name,omitempty"`
}

func runAccounts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	statuses := make([]accountStatus, 0, len(reg.Accounts()))

	for _, acc := range reg.Accounts() {
		st := accountStatus{
			Name:     acc.Name,
			Provider: acc.Kind.Label(),
			Enabled:  acc.Enabled,
			Default:  acc.Default,
		}

		if acc.Enabled {
			a, _, err := reg.ByAccount(acc.Name)
			if err == nil {
				if _, err := a.Authenticate(ctx); err != nil {
					return err
				}

				st.Active = a.Active()
				st.Display = a.DisplayName()
			}
		}

		statuses = append(statuses, st)
	}

	return printResult(statuses, printAccountsTable)
}

func printAccountsTable(statuses []accountStatus) {
	headers := []string{"NAME", "PROVIDER", "STATUS", "DISPLAY NAME"}
	rows := make([][]string, 0, len(statuses))

	for _, st := range statuses {
		status := "disabled"

		switch {
		case st.Enabled && st.Active:
			status = "active"
		case st.Enabled:
			status = "inactive"
		}

		name := st.Name
		if st.Default {
			name += " *"
		}

		rows = append(rows, []string{name, st.Provider, status, st.Display})
	}

	printTable(os.Stdout, headers, rows)
}
