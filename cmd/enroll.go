package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dkadlec/presence/internal/config"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/roster"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>",
	Short: "Enroll a reference photo for an identity",
	Long: `Enroll one reference photo into the face gallery. An identity may
have several encodings; each enroll call adds one. With a roster database
and --section, the student is upserted into the roster as well.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("section", "", "Roster section to place the student in")
	enrollCmd.Flags().Int("semester", 0, "Roster semester")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name, imagePath := args[0], args[1]
	cfg := config.Load()

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", imagePath, err)
	}

	rec, gal, err := openRecognizer(cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	if err := gal.Add(name, imageData); err != nil {
		if errors.Is(err, gallery.ErrNoFace) {
			return fmt.Errorf("no face found in %s", imagePath)
		}
		return fmt.Errorf("enrolling %s: %w", name, err)
	}
	fmt.Printf("Enrolled %s (%d encodings)\n", name, gal.Snapshot().Count(name))

	section := mustGetString(cmd, "section")
	if section == "" {
		return nil
	}

	pool, store, err := openRoster(cfg)
	if err != nil {
		return err
	}
	if pool == nil {
		return errors.New("--section needs a DATABASE_URL")
	}
	defer pool.Close()

	if err := pool.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrating roster database: %w", err)
	}

	st := roster.Student{
		Name:     name,
		Section:  section,
		Semester: mustGetInt(cmd, "semester"),
		Photo:    imageData,
	}
	if err := store.AddStudent(cmd.Context(), st); err != nil {
		return err
	}
	fmt.Printf("Added %s to roster section %s\n", name, section)
	return nil
}
