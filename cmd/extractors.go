package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"mediagrab/internal/extractor"
)

var extractorsCmd = &cobra.Command{
	Use:   "extractors",
	Short: "List supported sites",
	Args:  cobra.NoArgs,
	RunE:  extractorsRun,
}

type extractorInfo struct {
	Name  string   `json:"name"`
	Hosts []string `json:"hosts"`
}

func extractorsRun(cmd *cobra.Command, args []string) error {
	list := lo.Map(extractor.List(), func(e extractor.Extractor, _ int) extractorInfo {
		return extractorInfo{Name: e.Name(), Hosts: extractor.Hosts(e.Name())}
	})

	if flagJSON {
		return writeJSON(os.Stdout, list)
	}
	nameStyle := titleStyle.Width(12)
	for _, e := range list {
		hosts := strings.Join(e.Hosts, ", ")
		if hosts == "" {
			hosts = "any host (fallback)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), nameStyle.Render(e.Name)+mutedStyle.Render(hosts))
	}
	return nil
}
