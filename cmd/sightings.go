package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facewatch/internal/sightings"
)

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "List when and where identities were seen",
	Args:  cobra.NoArgs,
	RunE:  runSightings,
}

var sightingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every recorded sighting",
	Args:  cobra.NoArgs,
	RunE:  runSightingsClear,
}

func init() {
	rootCmd.AddCommand(sightingsCmd)
	sightingsCmd.AddCommand(sightingsClearCmd)

	sightingsCmd.Flags().Bool("json", false, "Output as JSON")
	sightingsClearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func openSightings() (*sightings.Log, error) {
	if !cfg.Sightings.Enabled {
		return nil, errors.New("sightings are disabled (sightings.enabled)")
	}
	l := sightings.New(cfg.Sightings.Dir, cfg.Sightings.MaxPerIdentity)
	if err := l.Load(); err != nil {
		return nil, fmt.Errorf("failed to load sightings: %w", err)
	}
	return l, nil
}

func runSightings(cmd *cobra.Command, args []string) error {
	l, err := openSightings()
	if err != nil {
		return err
	}
	known, unknown := l.Entries()

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]sightings.Entry{"known": known, "unknown": unknown})
	}

	if len(known)+len(unknown) == 0 {
		fmt.Println("No sightings recorded.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tKIND\tSEEN\tFIRST\tLAST\tCAMERA")
	fmt.Fprintln(w, "-----\t----\t----\t-----\t----\t------")
	for _, group := range [][]sightings.Entry{known, unknown} {
		for _, e := range group {
			camera := ""
			if n := len(e.Detections); n > 0 {
				camera = e.Detections[n-1].Camera
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				e.Name, e.Kind, e.Count,
				e.FirstDetected.Local().Format(time.DateTime),
				e.LastDetected.Local().Format(time.DateTime),
				camera)
		}
	}
	w.Flush()
	return nil
}

func runSightingsClear(cmd *cobra.Command, args []string) error {
	l, err := openSightings()
	if err != nil {
		return err
	}
	if !mustGetBool(cmd, "yes") && !confirm("Forget every recorded sighting?") {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := l.Clear(); err != nil {
		return fmt.Errorf("failed to clear sightings: %w", err)
	}
	fmt.Println("Sightings cleared.")
	return nil
}
