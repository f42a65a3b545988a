package main

import (
	"github.com/spf13/cobra"
	"github.com/vilterp/nltemplate/pkg/lang"
)

var (
	storePath         string
	overwriteMetadata bool

	rootCmd = &cobra.Command{
		Use:           "nltemplate",
		Short:         "Build relational neural templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Build a template interactively, locally or against a server",
		Args:  cobra.NoArgs,
		RunE:  runShell,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve template sessions over websockets",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	gnnCmd = &cobra.Command{
		Use:   "gnn kind:in_channels[:name]...",
		Short: "Print the template for a stack of graph layers",
		Example: `  nltemplate gnn --out 2 gcn:3 sage:8 gin:4
  nltemplate gnn --edge-attrs --save gatv2:16:encoder`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGNN,
	}

	storeCmd = &cobra.Command{
		Use:   "store",
		Short: "Inspect stored templates",
	}
	storeListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored template IDs",
		Args:  cobra.NoArgs,
		RunE:  runStoreList,
	}
	storeShowCmd = &cobra.Command{
		Use:   "show id",
		Short: "Print a stored template",
		Args:  cobra.ExactArgs(1),
		RunE:  runStoreShow,
	}

	runCmd = &cobra.Command{
		Use:   "run template_file",
		Short: "Bind a dataset to a template and train it with the dry-run engine",
		Example: `  nltemplate run model.tmpl --settings settings.yaml \
    --source edge=edges.csv:0,1 --source label=labels.csv:0:1 --query predict`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "bolt file holding saved templates")
	rootCmd.PersistentFlags().BoolVar(&overwriteMetadata, "overwrite-metadata", false, "re-annotating a rule or relation replaces its metadata instead of failing")

	shellCmd.Flags().StringVar(&shellURL, "url", "", "websocket URL of a server; empty runs a local session")

	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "host to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 9000, "port to listen on")

	gnnCmd.Flags().IntVar(&gnnOut, "out", 1, "width of the last layer's output")
	gnnCmd.Flags().BoolVar(&gnnEdgeAttrs, "edge-attrs", false, "layers read edge attributes")
	gnnCmd.Flags().StringVar(&gnnActivation, "activation", "", "activation for every layer (default: per kind)")
	gnnCmd.Flags().BoolVar(&gnnSave, "save", false, "write the template to --store")

	runCmd.Flags().StringVar(&runSettings, "settings", "", "YAML engine settings (default settings if empty)")
	runCmd.Flags().StringArrayVar(&runSources, "source", nil, "relation=path:term_cols[:value_col], repeatable")
	runCmd.Flags().StringVar(&runMode, "mode", "one_example", "one_example, example_per_source or zip")
	runCmd.Flags().StringArrayVar(&runQueries, "query", nil, "query atom, repeatable")
	runCmd.Flags().BoolVar(&runHeader, "header", false, "source files start with a header row")

	storeCmd.AddCommand(storeListCmd, storeShowCmd)
	rootCmd.AddCommand(shellCmd, serveCmd, gnnCmd, storeCmd, runCmd)
}

func metadataPolicy() lang.MetadataPolicy {
	if overwriteMetadata {
		return lang.AttachOverwrite
	}
	return lang.AttachStrict
}

func newFactory() *lang.Factory {
	return lang.NewFactory(metadataPolicy())
}
