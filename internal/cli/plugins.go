package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// newPluginsCommand creates the "plugins" subcommand that lists compiled-in modules.
func newPluginsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List compiled-in plugin modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(opts.out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "MODULE\tCLASS\tROLES")

			for _, name := range pkg.Modules() {
				m, _ := pkg.LookupModule(name)
				for _, c := range m.Classes {
					if c.Abstract() {
						continue
					}
					var roles []string
					for _, r := range pkg.OrderedRoles {
						if pkg.Implements(r, c.Prototype) {
							roles = append(roles, string(r))
						}
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, c.Name, strings.Join(roles, ","))
				}
			}

			return w.Flush()
		},
	}
}

// newVersionCommand creates the "version" subcommand.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cryoflow %s\n", Version)
		},
	}
}
