package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pansave/pansave/internal/drive"
)

func newSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <url>",
		Short: "Save a share link's files into your own drive",
		Long: `Save copies files from a share link into your own drive on the same
provider. The provider is detected from the URL; the account is the one
marked default for that provider unless --account says otherwise.

By default every file in the linked directory is saved. Use --items to
pick a subset by name.`,
		Args: cobra.ExactArgs(1),
		RunE: runSave,
	}

	cmd.Flags().String("passcode", "", "share passcode, when not embedded in the URL")
	cmd.Flags().String("to", "", "destination directory path (default: save_root from config)")
	cmd.Flags().StringSlice("items", nil, "names of items to save (default: all)")

	return cmd
}

// savedItem is the JSON output schema for one transferred item.
type savedItem struct {
	Name    string `json:"name"`
	SavedID string `json:"saved_id,omitempty"`
}

// saveView is the JSON output schema for the save command.
type saveView struct {
	Provider    string      `json:"provider"`
	ShareID     string      `json:"share_id"`
	Destination string      `json:"destination"`
	TaskID      string      `json:"task_id"`
	Synchronous bool        `json:"synchronous"`
	Items       []savedItem `json:"items"`
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, acc, ref, err := reg.ByShareURL(args[0])
	if err != nil {
		return printErrorResult(lookupError(err))
	}

	if pc, _ := cmd.Flags().GetString("passcode"); pc != "" {
		ref.Passcode = pc
	}

	if _, err := a.Authenticate(ctx); err != nil {
		return err
	}

	if !a.Active() {
		return fmt.Errorf("account %q: credential rejected by %s", acc.Name, acc.Kind.Label())
	}

	token, err := a.GetShareToken(ctx, ref.ShareID, ref.Passcode)
	if err != nil {
		return printErrorResult(fmt.Errorf("unlocking share: %w", err))
	}

	listing, err := a.ListSharedDirectory(ctx, ref, token, ref.StartDir)
	if err != nil {
		return printErrorResult(fmt.Errorf("listing share: %w", err))
	}

	wanted, _ := cmd.Flags().GetStringSlice("items")

	sources, err := pickSources(listing.Entries, wanted)
	if err != nil {
		return err
	}

	destPath, _ := cmd.Flags().GetString("to")
	if destPath == "" {
		if cfg := loadedCfg.Load(); cfg != nil {
			destPath = cfg.Settings.SaveRoot
		}
	}

	dest, err := a.CreateDirectory(ctx, destPath)
	if err != nil {
		return printErrorResult(fmt.Errorf("preparing destination %q: %w", destPath, err))
	}

	// Warn about name collisions up front; the provider renames arriving
	// duplicates, and the reconciled ids still come back aligned.
	existing, err := a.ListDirectory(ctx, dest.ID)
	if err != nil {
		return printErrorResult(fmt.Errorf("checking destination: %w", err))
	}

	for _, name := range collidingNames(sources, existing.Entries) {
		statusf("note: %q already exists in %s, the copy will be renamed\n", name, destPath)
	}

	result, err := a.TransferToOwnDrive(ctx, drive.TransferRequest{
		Sources: sources,
		DestDir: dest.ID,
		Share:   ref,
		Token:   token,
	})
	if err != nil {
		return printErrorResult(fmt.Errorf("saving: %w", err))
	}

	view := saveView{
		Provider:    acc.Kind.Label(),
		ShareID:     ref.ShareID,
		Destination: destPath,
		TaskID:      result.TaskID,
		Synchronous: result.Synchronous,
		Items:       make([]savedItem, len(sources)),
	}

	for i, src := range sources {
		view.Items[i] = savedItem{Name: src.Name}

		if i < len(result.SavedIDs) {
			view.Items[i].SavedID = result.SavedIDs[i]
		}
	}

	return printResult(view, printSaveView)
}

// pickSources filters the share listing down to the requested names. With
// no names, every file and directory in the listing is saved.
func pickSources(entries []drive.FileEntry, wanted []string) ([]drive.FileEntry, error) {
	if len(wanted) == 0 {
		if len(entries) == 0 {
			return nil, fmt.Errorf("the share is empty")
		}

		return entries, nil
	}

	byName := make(map[string]drive.FileEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	out := make([]drive.FileEntry, 0, len(wanted))

	for _, name := range wanted {
		e, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%q not found in the share", name)
		}

		out = append(out, e)
	}

	return out, nil
}

// collidingNames returns the source names that already exist in the
// destination, in source order.
func collidingNames(sources, existing []drive.FileEntry) []string {
	names := make(map[string]bool, len(existing))
	for _, e := range existing {
		names[e.Name] = true
	}

	var out []string

	for _, src := range sources {
		if names[src.Name] {
			out = append(out, src.Name)
		}
	}

	return out
}

func printSaveView(v saveView) {
	headers := []string{"NAME", "SAVED ID"}
	rows := make([][]string, 0, len(v.Items))

	for _, item := range v.Items {
		id := item.SavedID
		if id == "" {
			id = "(unresolved)"
		}

		rows = append(rows, []string{item.Name, id})
	}

	printTable(os.Stdout, headers, rows)

	if v.Synchronous {
		statusf("saved %d items to %s\n", len(v.Items), v.Destination)
	} else {
		statusf("transfer queued as task %s\n", v.TaskID)
	}
}
