package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pansave/pansave/internal/config"
	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/registry"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a directory in your own drive",
		Long: `List a directory in your own drive. The argument is a directory
reference in the account's provider's own notation: a path like /media for
Baidu, a file id for Aliyun. Omitted or "/" means the drive root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLs,
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory (recursive)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <ref> <new-name>",
		Short: "Rename a file or directory in place",
		Args:  cobra.ExactArgs(2),
		RunE:  runMv,
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <ref>...",
		Short: "Delete files or directories",
		Long: `Delete files or directories from your own drive. Providers that
support a recycle bin move items there instead of destroying them.
Directory deletion is recursive.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRm,
	}
}

// lookupError rewrites registry lookup failures into a message telling the
// user which account to add and where.
func lookupError(err error) error {
	var noAcc *registry.NoAccountError

	switch {
	case errors.As(err, &noAcc) && noAcc.Kind != "":
		return fmt.Errorf("no %s account configured, add one to %s", noAcc.Kind.Label(), config.DefaultConfigPath())
	case errors.Is(err, registry.ErrNoAccount):
		return fmt.Errorf("no usable account, add one to %s", config.DefaultConfigPath())
	default:
		return err
	}
}

// activeAdapter resolves the account selected by --account (or the
// default), builds its adapter and authenticates it.
func activeAdapter(ctx context.Context) (drive.Adapter, drive.Account, error) {
	a, acc, err := reg.ByAccount(flagAccount)
	if err != nil {
		return nil, drive.Account{}, lookupError(err)
	}

	if _, err := a.Authenticate(ctx); err != nil {
		return nil, drive.Account{}, err
	}

	if !a.Active() {
		return nil, drive.Account{}, fmt.Errorf("account %q: credential rejected by %s", acc.Name, acc.Kind.Label())
	}

	return a, acc, nil
}

func runLs(cmd *cobra.Command, args []string) error {
	dirRef := ""
	if len(args) > 0 {
		dirRef = args[0]
	}

	ctx := cmd.Context()

	a, _, err := activeAdapter(ctx)
	if err != nil {
		return err
	}

	listing, err := a.ListDirectory(ctx, dirRef)
	if err != nil {
		return printErrorResult(fmt.Errorf("listing %q: %w", dirRef, err))
	}

	return printResult(listing, printListing)
}

func printListing(listing drive.Listing) {
	entries := listing.Entries

	// Sort: directories first, then alphabetical.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}

		return entries[i].Name < entries[j].Name
	})

	headers := []string{"NAME", "SIZE", "MODIFIED", "ID"}
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		name := entries[i].Name
		size := formatSize(entries[i].Size)

		if entries[i].IsDir {
			name += "/"
			size = "-"
		}

		rows = append(rows, []string{name, size, formatTime(entries[i].ModifiedAt), entries[i].ID})
	}

	printTable(os.Stdout, headers, rows)

	statusf("%d items\n", listing.Total)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, _, err := activeAdapter(ctx)
	if err != nil {
		return err
	}

	entry, err := a.CreateDirectory(ctx, args[0])
	if err != nil {
		return printErrorResult(fmt.Errorf("creating %q: %w", args[0], err))
	}

	return printResult(entry, func(e drive.FileEntry) {
		fmt.Printf("%s\n", e.ID)
	})
}

func runMv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, _, err := activeAdapter(ctx)
	if err != nil {
		return err
	}

	if err := a.Rename(ctx, args[0], args[1]); err != nil {
		return printErrorResult(fmt.Errorf("renaming %q: %w", args[0], err))
	}

	return printResult(struct{}{}, func(struct{}) {
		statusf("renamed %s -> %s\n", args[0], args[1])
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, _, err := activeAdapter(ctx)
	if err != nil {
		return err
	}

	if err := a.Delete(ctx, args); err != nil {
		return printErrorResult(fmt.Errorf("deleting: %w", err))
	}

	return printResult(struct{}{}, func(struct{}) {
		statusf("deleted %d items\n", len(args))
	})
}
