package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skobkin/amdgputop/internal/config"
	"github.com/skobkin/amdgputop/internal/gpu"
)

func newListCommand(out *os.File, errOut io.Writer) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the GPUs found in sysfs",
		Long: `List the DRM cards found under <sysfs-root>/class/drm with their PCI slot,
driver and resolved product name. The ids are valid values for --card.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))

			infos, err := gpu.Discover(v.GetString(config.KeySysfsRoot), logger.With("component", "gpu_discovery"))
			if err != nil {
				return fmt.Errorf("discover gpus: %w", err)
			}
			if asJSON {
				return writeJSON(out, infos)
			}
			return writeTable(out, infos)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func writeJSON(w io.Writer, infos []gpu.Info) error {
	if infos == nil {
		infos = []gpu.Info{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(infos); err != nil {
		return fmt.Errorf("encode gpu list: %w", err)
	}
	return nil
}

func writeTable(w io.Writer, infos []gpu.Info) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No GPUs detected")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPCI\tPCI ID\tDRIVER\tNAME")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.ID, dash(info.PCI), dash(info.PCIID), dash(info.Driver), dash(info.Name))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
