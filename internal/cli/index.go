package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/launchtower/pkg/p2"
)

// indexCommand creates the index command.
func (c *CLI) indexCommand() *cobra.Command {
	var flags repoFlags

	cmd := &cobra.Command{
		Use:   "index [repository-url...]",
		Short: "Index p2 repositories and print what they offer",
		Long: `Index walks composite and simple p2 repositories, caches the parsed unit
lists and prints statistics. Without arguments the repositories of the run
configuration are indexed.`,
		Example: `  launchtower index https://download.eclipse.org/releases/2024-03
  launchtower index --refresh --os linux --ws gtk --arch x86_64`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				flags.repos = args
			}
			defer c.metrics(flags.metricsFile)()

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if len(cfg.Repositories) == 0 {
				return fmt.Errorf("no repositories: pass URLs or configure repositories")
			}

			spinner := newSpinnerWithContext(cmd.Context(), "Indexing repositories...")
			if !c.verbose() {
				spinner.Start()
			}
			idx, closeIndex, err := c.openIndex(cmd.Context(), cfg, &flags)
			if !c.verbose() {
				spinner.Stop()
			}
			if err != nil {
				printError("Indexing failed")
				return err
			}
			defer closeIndex()

			printIndex(idx)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) verbose() bool {
	return c.Logger.GetLevel() <= LogDebug
}

func printIndex(idx *p2.Index) {
	s := idx.Stats()
	for _, root := range idx.Roots() {
		kind := "simple"
		if root.IsComposite() {
			kind = fmt.Sprintf("composite, %s", count(len(root.Children), "child", "children"))
		}
		printSuccess("%s %s", StyleLink.Render(root.URL), StyleDim.Render("("+kind+")"))
	}
	printKeyValue("locations", strconv.Itoa(s.Nodes))
	printKeyValue("leaves", strconv.Itoa(s.Leaves))
	printKeyValue("bundles", fmt.Sprintf("%d (%d versions)", s.Bundles, s.BundleKeys))
	printKeyValue("features", strconv.Itoa(s.Features))
	printKeyValue("packages", strconv.Itoa(s.Packages))
	if err := idx.Err(); err != nil {
		printWarning("some locations failed: %v", err)
	}
}
