package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var singleCmd = &cobra.Command{
	Use:   "single <url>",
	Short: "Process one site and print its run",
	Args:  exactArgs(1),
	RunE:  runSingle,
}

func init() {
	singleCmd.Flags().BoolVar(&flagProduction, "production", false, "Write results to the datastore")
}

func runSingle(cmd *cobra.Command, args []string) error {
	siteURL := args[0]
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		return fmt.Errorf("%w: url must start with http:// or https://", errUsage)
	}

	a, err := newApp(cmd.Context(), flagProduction, 1, 0)
	if err != nil {
		return err
	}
	defer a.close()

	run, err := a.runner.RunSingle(cmd.Context(), siteURL)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	if len(run.Results) == 0 {
		a.logger.Error("no leaderboards extracted",
			zap.String("domain", run.Domain),
			zap.Strings("errors", run.Errors))
		return fmt.Errorf("no leaderboards extracted from %s", run.Domain)
	}
	return nil
}
