package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/recognition"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>...",
	Short: "Enroll a person from one or more photos",
	Long: `Detect the largest face in every image and store it under name.
Images without a face are skipped. Unknown identities that look like the
enrolled person are merged into it.

Example:
  facewatch enroll "Alice" alice1.jpg alice2.jpg`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name, paths := args[0], args[1:]
	if err := database.ValidateKnownName(name); err != nil {
		return err
	}

	a, err := newApp(nil, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Detecting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var embeddings [][]float32
	var enrolled, skipped []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		emb, err := a.engine.FaceEmbedding(ctx, data)
		if errors.Is(err, recognition.ErrNoFaceDetected) {
			skipped = append(skipped, path)
			_ = bar.Add(1)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		embeddings = append(embeddings, emb)
		enrolled = append(enrolled, path)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	for _, path := range skipped {
		fmt.Printf("  - no face found in %s (skipped)\n", path)
	}

	res, err := a.engine.EnrollEmbeddings(name, embeddings)
	if errors.Is(err, recognition.ErrNoFaceDetected) {
		return fmt.Errorf("no face found in any of the %d image(s)", len(paths))
	}
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		return err
	}

	fmt.Printf("Enrolled %s with %d face(s).\n", res.Identity, res.Added)
	for _, merged := range res.Merged {
		fmt.Printf("  - merged %s into %s\n", merged, res.Identity)
	}
	for _, i := range res.Outliers {
		fmt.Printf("  ! %s looks unlike the other photos, check it shows %s\n", enrolled[i], res.Identity)
	}
	if err != nil {
		return fmt.Errorf("enrollment not saved: %w", err)
	}
	return nil
}
