package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize the faces in a single image",
	Long: `Match every face of an image against the index. Nothing is tracked
or stored.

Example:
  facewatch recognize group.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

type recognizeOutput struct {
	Label string     `json:"label"`
	Kind  string     `json:"kind"`
	Score float64    `json:"score"`
	BBox  [4]float64 `json:"bbox"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	a, err := newApp(nil, false)
	if err != nil {
		return err
	}
	defer a.Close()
	results, err := a.engine.Recognize(context.Background(), data)
	if err != nil {
		return err
	}

	out := make([]recognizeOutput, 0, len(results))
	for _, r := range results {
		o := recognizeOutput{Label: r.Label(), Kind: "none", Score: r.Score, BBox: r.BBox}
		if r.Identity != nil {
			o.Kind = r.Identity.Kind.String()
		}
		out = append(out, o)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(out) == 0 {
		fmt.Println("No faces found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSCORE\tBOX")
	fmt.Fprintln(w, "-----\t-----\t---")
	for _, o := range out {
		fmt.Fprintf(w, "%s\t%.3f\t%.0f,%.0f,%.0f,%.0f\n", o.Label, o.Score, o.BBox[0], o.BBox[1], o.BBox[2], o.BBox[3])
	}
	w.Flush()
	return nil
}
