package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/thumbnail"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the identities in the face index",
	Args:  cobra.NoArgs,
	RunE:  runIdentities,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show face index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	rootCmd.AddCommand(statsCmd)
	identitiesCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}

type identityOutput struct {
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	Faces      int    `json:"faces"`
	LatestFace string `json:"latest_face,omitempty"`
}

// listIdentities describes every identity, with its newest face crop when
// crops is not nil.
func listIdentities(idx *database.Index, crops *thumbnail.Store) []identityOutput {
	summaries := idx.Identities()
	out := make([]identityOutput, 0, len(summaries))
	for _, s := range summaries {
		o := identityOutput{Label: s.Identity.String(), Kind: s.Identity.Kind.String(), Faces: s.Rows}
		if crops != nil {
			o.LatestFace, _ = crops.Latest(s.Identity)
		}
		out = append(out, o)
	}
	return out
}

func runIdentities(cmd *cobra.Command, args []string) error {
	idx, err := openIndex(true)
	if err != nil {
		return err
	}
	defer closeIndex(idx)

	out := listIdentities(idx, newFaceStore())

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(out) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tKIND\tFACES\tLATEST FACE")
	fmt.Fprintln(w, "-----\t----\t-----\t-----------")
	for _, o := range out {
		latest := o.LatestFace
		if latest == "" {
			latest = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.Label, o.Kind, o.Faces, latest)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d identities\n", len(out))
	return nil
}

type statsOutput struct {
	Faces             int    `json:"faces"`
	KnownIdentities   int    `json:"known_identities"`
	UnknownIdentities int    `json:"unknown_identities"`
	NextUnknown       string `json:"next_unknown"`
	Dim               int    `json:"dim"`
	DataDir           string `json:"data_dir"`
}

func runStats(cmd *cobra.Command, args []string) error {
	idx, err := openIndex(true)
	if err != nil {
		return err
	}
	defer closeIndex(idx)

	st := idx.Stats()
	out := statsOutput{
		Faces:             st.Rows,
		KnownIdentities:   st.KnownIdentities,
		UnknownIdentities: st.UnknownIdentities,
		NextUnknown:       fmt.Sprintf("Unknown%d", st.NextUnknownSerial),
		Dim:               st.Dim,
		DataDir:           cfg.Store.DataDir,
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Faces:              %d\n", out.Faces)
	fmt.Printf("Known identities:   %d\n", out.KnownIdentities)
	fmt.Printf("Unknown identities: %d\n", out.UnknownIdentities)
	fmt.Printf("Next unknown:       %s\n", out.NextUnknown)
	fmt.Printf("Dimension:          %d\n", out.Dim)
	fmt.Printf("Data directory:     %s\n", out.DataDir)
	return nil
}
