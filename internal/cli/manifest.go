package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// manifestCommand creates the manifest command.
func (c *CLI) manifestCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "manifest <bundle-jar|bundle-dir|feature>",
		Short: "Print the parsed manifest of a bundle or feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := readArtifact(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			switch v := v.(type) {
			case *osgi.BundleInfo:
				printBundle(v)
			case *osgi.FeatureInfo:
				printFeature(v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// readArtifact reads path as a bundle, falling back to a feature when it is
// not one.
func readArtifact(path string) (any, error) {
	b, err := osgi.ReadBundle(path)
	if err == nil {
		return b, nil
	}
	if f, ferr := osgi.ReadFeature(path); ferr == nil {
		return f, nil
	}
	return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "%s is neither a bundle nor a feature", path)
}

func printBundle(b *osgi.BundleInfo) {
	printSuccess("%s", StyleHighlight.Render(b.String()))
	printKeyValue("path", b.Path)
	if len(b.ClassPath) > 0 {
		printKeyValue("classpath", strings.Join(b.ClassPath, ", "))
	}
	if b.FragmentHost != nil {
		printKeyValue("host", b.FragmentHost.Name+" "+b.FragmentHost.Range.String())
	}
	printStats(
		count(len(b.RequiredBundles), "required bundle", "required bundles"),
		count(len(b.ImportedPackages), "import", "imports"),
		count(len(b.ExportedPackages), "export", "exports"),
	)

	if len(b.RequiredBundles) > 0 {
		rows := make([][]string, len(b.RequiredBundles))
		for i, r := range b.RequiredBundles {
			rows[i] = []string{r.Name, r.Range.String(), flag(r.Reexport, "reexport")}
		}
		printTable([]string{"Require-Bundle", "Range", ""}, rows)
	}
	if len(b.ImportedPackages) > 0 {
		rows := make([][]string, len(b.ImportedPackages))
		for i, p := range b.ImportedPackages {
			rows[i] = []string{p.Name, p.Range.String(), flag(p.Optional, "optional")}
		}
		printTable([]string{"Import-Package", "Range", ""}, rows)
	}
}

func printFeature(f *osgi.FeatureInfo) {
	printSuccess("%s %s", StyleHighlight.Render(f.String()), StyleDim.Render("(feature)"))
	printKeyValue("path", f.Path)
	printStats(
		count(len(f.Plugins), "plugin", "plugins"),
		count(len(f.Features), "included feature", "included features"),
	)
	for _, p := range f.Plugins {
		printDetail("%s %s%s", p.Name, p.Version, flag(p.Fragment, " (fragment)"))
	}
	for _, r := range f.Features {
		printDetail("feature %s %s%s", r.Name, r.Version, flag(r.Optional, " (optional)"))
	}
}

func flag(set bool, label string) string {
	if set {
		return label
	}
	return ""
}

