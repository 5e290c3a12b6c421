package cmd

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dkadlec/presence/internal/config"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/vision"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the face gallery from the roster's reference photos",
	Long: `Rebuild the face gallery wholesale from the reference photos stored
in the roster database. Existing encodings are replaced; students whose
photo contains no detectable face are skipped and listed.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

// progressEncoder ticks the progress bar once per encoded reference image.
type progressEncoder struct {
	enc gallery.Encoder
	bar *progressbar.ProgressBar
}

func (p progressEncoder) EncodeFirst(imageData []byte) (vision.Descriptor, bool, error) {
	defer p.bar.Add(1)
	return p.enc.EncodeFirst(imageData)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pool, store, err := openRoster(cfg)
	if err != nil {
		return err
	}
	if pool == nil {
		return errors.New("rebuild needs a DATABASE_URL")
	}
	defer pool.Close()

	if err := pool.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrating roster database: %w", err)
	}

	refs, err := store.References(cmd.Context())
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return errors.New("no reference photos in the roster")
	}

	rec, err := vision.NewDlib(cfg.Vision.ModelsDir)
	if err != nil {
		return fmt.Errorf("loading face models from %s: %w", cfg.Vision.ModelsDir, err)
	}
	defer rec.Close()

	bar := progressbar.Default(int64(len(refs)), "Encoding faces")
	gal, err := gallery.Open(cfg.Gallery.Path, progressEncoder{enc: rec, bar: bar})
	if err != nil {
		return fmt.Errorf("opening gallery %s: %w", cfg.Gallery.Path, err)
	}

	report, err := gal.Rebuild(refs)
	if err != nil {
		return err
	}

	fmt.Printf("\nRebuilt gallery with %d encodings\n", report.Added)
	for _, name := range report.Skipped {
		fmt.Printf("Skipped %s: no detectable face in reference photo\n", name)
	}
	return nil
}
