package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <label> <name>",
	Short: "Rename an identity",
	Long: `Give an identity a new name. Typically used to name an Unknown
identity once you know who it is.

Example:
  facewatch rename Unknown3 "Bob"`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, false)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.engine.Rename(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename %s: %w", args[0], err)
	}
	fmt.Printf("Renamed %s to %s.\n", args[0], args[1])
	return nil
}
