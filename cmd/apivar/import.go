package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"pkt.systems/apivar"
)

func newImportCmd() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Generate a suite from other formats (openapi)",
	}

	openapi := &cobra.Command{
		Use:   "openapi",
		Short: "Generate defaults, requests, schemas and a suite from OpenAPI/Swagger",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromCmd(cmd)
			src, _ := cmd.Flags().GetString("source")
			outDir, _ := cmd.Flags().GetString("output")
			outFile, _ := cmd.Flags().GetString("output-file")
			name, _ := cmd.Flags().GetString("suite-name")
			insecure, _ := cmd.Flags().GetBool("insecure")
			allowRemoteRefs, _ := cmd.Flags().GetBool("allow-remote-refs")
			allowFileRefs, _ := cmd.Flags().GetBool("allow-file-refs")
			disableSchemas, _ := cmd.Flags().GetBool("disable-schema-validation")
			includePaths, _ := cmd.Flags().GetStringSlice("include-path")
			if src == "" {
				return fmt.Errorf("--source is required")
			}
			if outDir == "" && outFile == "" {
				return fmt.Errorf("either --output or --output-file is required")
			}
			return apivar.ImportOpenAPI(cmd.Context(), apivar.ImportOptions{
				Source:          src,
				OutputDir:       outDir,
				OutputFile:      outFile,
				SuiteName:       name,
				Insecure:        insecure,
				AllowRemoteRefs: allowRemoteRefs,
				AllowFileRefs:   allowFileRefs,
				DisableSchemas:  disableSchemas,
				IncludePaths:    includePaths,
				Logger:          logger,
			})
		},
	}

	addLoggingFlags(importCmd.Flags())
	addLoggingFlags(openapi.Flags())

	openapi.Flags().StringP("source", "s", "", "Path or URL to source file")
	openapi.Flags().StringP("output", "o", "", "Output directory for the generated suite")
	openapi.Flags().StringP("output-file", "f", "", "Write a JSON summary of generated files")
	openapi.Flags().StringP("suite-name", "n", "", "Name recorded in the summary and schema bundle")
	openapi.Flags().Bool("insecure", false, "Skip TLS verification when fetching URL")
	openapi.Flags().Bool("allow-remote-refs", false, "Allow following remote $refs inside the OpenAPI document")
	openapi.Flags().Bool("allow-file-refs", false, "Allow absolute/local file $refs (blocked by default for security)")
	openapi.Flags().Bool("disable-schema-validation", false, "Skip the schema bundle and json-schema validations")
	openapi.Flags().StringSliceP("include-path", "i", nil, "Only import operations whose path starts with one of these prefixes (repeatable)")

	importCmd.AddCommand(openapi)
	return importCmd
}
