package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/apivar"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request FILE",
		Short: "Execute the requests of a YAML document and print the responses as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  requestE,
	}

	addLoggingFlags(cmd.Flags())
	cmd.Flags().String("defaults", "", "Defaults file applied with the highest precedence")
	cmd.Flags().StringArray("var", nil, "Variable name=value; value @path embeds the file base64 encoded")
	cmd.Flags().Int("timeout", 30, "Per-request timeout seconds")
	addClientFlags(cmd)
	return cmd
}

type printedResponse struct {
	Code    int `json:"code"`
	Content any `json:"content"`
}

func requestE(cmd *cobra.Command, args []string) error {
	defaultsPath, _ := cmd.Flags().GetString("defaults")
	varsList, _ := cmd.Flags().GetStringArray("var")
	timeoutSec, _ := cmd.Flags().GetInt("timeout")

	logger := loggerFromCmd(cmd)

	vars, err := parseVars(varsList)
	if err != nil {
		logger.Fatal("vars", "err", err)
		return nil
	}
	httpClient, err := clientFlagsFromCmd(cmd).build()
	if err != nil {
		logger.Fatal("http client", "err", err)
		return nil
	}
	r, err := apivar.New(cmd.Context(), apivar.WithLogger(logger), apivar.WithHTTPClient(httpClient))
	if err != nil {
		logger.Fatal("init", "err", err)
		return nil
	}

	res, err := r.RunDocument(cmd.Context(), args[0], apivar.DocumentOptions{
		DefaultsPath: defaultsPath,
		Vars:         vars,
		Timeout:      time.Duration(timeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("parse", "file", args[0], "err", err)
		return nil
	}

	out := make([]printedResponse, 0, len(res.Responses))
	for _, resp := range res.Responses {
		out = append(out, printedResponse{Code: resp.Code, Content: resp.Content})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	logger.Debug("request.done", "file", res.Path, "responses", len(res.Responses), "failures", len(res.Failures), "dur", res.Duration.String())
	if len(res.Failures) > 0 {
		logger.Fatal("requests failed", "count", len(res.Failures))
	}
	return nil
}
