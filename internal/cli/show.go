package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	lio "github.com/matzehuels/launchtower/pkg/io"
)

// showCommand creates the show command.
func (c *CLI) showCommand() *cobra.Command {
	var startOnly bool

	cmd := &cobra.Command{
		Use:   "show [launch.json]",
		Short: "Print a launch document written by resolve",
		Long: `Print a launch document written by resolve.

Without an argument, launch.json in the current directory is read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := launchFile
			if len(args) == 1 {
				path = args[0]
			}
			doc, err := lio.ImportJSON(path)
			if err != nil {
				return err
			}
			printDocument(doc, startOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&startOnly, "start-levels", false, "list only bundles with an explicit start level")
	return cmd
}

func printDocument(doc *lio.Document, startOnly bool) {
	name := doc.Product.Name
	if doc.Product.Version != "" {
		name += " " + doc.Product.Version
	}
	printSuccess("%s", StyleHighlight.Render(name))
	levels := doc.StartLevels()
	printStats(
		count(len(doc.Bundles), "bundle", "bundles"),
		count(len(doc.Features), "feature", "features"),
		count(len(levels), "with start level", "with start level"),
	)
	if doc.Splash != "" {
		printKeyValue("splash", doc.Splash)
	}
	if len(doc.ProgramArgs) > 0 {
		printKeyValue("program", strings.Join(doc.ProgramArgs, " "))
	}
	if len(doc.VMArgs) > 0 {
		printKeyValue("vm", strings.Join(doc.VMArgs, " "))
	}

	var rows [][]string
	for _, b := range doc.Bundles {
		level := ""
		if l, ok := levels[b.Name]; ok {
			level = strconv.Itoa(l)
		} else if startOnly {
			continue
		}
		source := "local"
		if b.Remote {
			source = "remote"
		}
		rows = append(rows, []string{b.Name, b.Version, level, source})
	}
	if len(rows) > 0 {
		printTable([]string{"Bundle", "Version", "Start", "Source"}, rows)
	}
	if doc.Unresolved != nil {
		printReport(doc.Unresolved)
	}
}
