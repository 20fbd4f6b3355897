package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/clinical-evidence-engine/internal/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve evidence search as MCP tools over stdio",
	Long: `mcp starts a Model Context Protocol server on stdin/stdout exposing the
evidence_search and understand_query tools. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return mcpadapter.NewServer(app.SearchUC, app.SearchUC, version).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
