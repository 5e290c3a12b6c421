package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkadlec/presence/internal/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an identity from the face gallery",
	Long: `Remove every encoding of one identity from the face gallery.
Removing a name that is not enrolled succeeds and changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg := config.Load()

	rec, gal, err := openRecognizer(cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	if err := gal.RemoveAll(name); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	fmt.Printf("Removed %s (%d encodings remain in the gallery)\n", name, gal.Snapshot().Len())
	return nil
}
