package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkadlec/presence/internal/config"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List the enrolled identities",
	RunE:  runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
}

func runGallery(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	rec, gal, err := openRecognizer(cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	snap := gal.Snapshot()
	names := snap.Names()
	if len(names) == 0 {
		fmt.Println("Gallery is empty")
		return nil
	}

	for _, name := range names {
		fmt.Printf("%s (%d encodings)\n", name, snap.Count(name))
	}
	fmt.Printf("%d identities, %d encodings\n", len(names), snap.Len())
	return nil
}
