package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/usecase"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Report whether text is a medical question",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.Join(args, " ")
		if usecase.IsMedicalQuery(text) {
			fmt.Fprintln(cmd.OutOrStdout(), "medical")
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "non-medical")
	},
}

var understandCmd = &cobra.Command{
	Use:   "understand <question>",
	Short: "Print the clinical understanding extracted from a question",
	Long: `Understand runs intent detection, entity extraction, MeSH mapping and
query expansion without touching any backend.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"query":         text,
			"isMedical":     usecase.IsMedicalQuery(text),
			"understanding": usecase.Understand(text),
		})
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd, understandCmd)
}
