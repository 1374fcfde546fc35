package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/invoke"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

func metadataCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Inspect functions.metadata",
	}
	cmd.AddCommand(validateCmd(opts))
	return cmd
}

func validateCmd(opts Options) *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "validate [app-directory]",
		Short: "Validate functions.metadata and optionally resolve every entry point",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			metas, err := metadata.ReadFunctionsMetadata(dir)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				return fmt.Errorf("no functions found in %s", dir)
			}

			factory := &invoke.Factory{Loader: opts.loader()}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tENTRY POINT\tBINDINGS\tSTATUS")

			failed := 0
			for _, meta := range metas {
				status := "ok"
				if resolve {
					if _, err := factory.Define(meta.FunctionId, meta); err != nil {
						status = err.Error()
						failed++
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", meta.Name, meta.EntryPoint, len(meta.RawBindings), status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d functions failed to load", failed, len(metas))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Load each function's assembly and build its definition")
	return cmd
}
