package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <label>",
	Short: "Delete an identity and all its faces",
	Long: `Remove every stored face of an identity from the index, together
with its saved face crops.

Example:
  facewatch delete Unknown7
  facewatch delete "Alice" --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	label := args[0]
	a, err := newApp(nil, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !mustGetBool(cmd, "yes") && !confirm(fmt.Sprintf("Delete %s?", label)) {
		fmt.Println("Cancelled.")
		return nil
	}

	removed, err := a.engine.Delete(label)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", label, err)
	}
	fmt.Printf("Deleted %s (%d face(s)).\n", label, removed)
	return nil
}
