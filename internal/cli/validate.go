package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/trigger"
)

func init() {
	validateCmd.Flags().StringSliceVar(&validateTriggers, "triggers", nil, "Trigger documents to check against the jobs")
	rootCmd.AddCommand(validateCmd)
}

var validateTriggers []string

var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Check job documents and directories without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validate(cmd.OutOrStdout(), args, validateTriggers)
	},
}

// validate loads every path (file or directory) and every trigger file,
// printing one line per template and trigger. Triggers naming jobs that were
// not loaded are errors.
func validate(out io.Writer, paths, triggerFiles []string) error {
	var errs []error
	known := make(map[string]bool)

	for _, path := range paths {
		tpls, err := loadPath(path)
		if err != nil {
			errs = append(errs, err)
		}
		for _, tpl := range tpls {
			known[tpl.Label] = true
			fmt.Fprintf(out, "ok   %-24s %3d tasks  on_fail=%s\n", tpl.Label, len(tpl.Tasks.Nodes), tpl.OnFail)
		}
	}

	for _, path := range triggerFiles {
		trs, err := trigger.LoadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for _, t := range trs {
			if !known[t.Job] {
				errs = append(errs, fmt.Errorf("%s: trigger %s references unknown job %s", path, t.ID, t.Job))
				continue
			}
			fmt.Fprintf(out, "ok   trigger %-16s -> %s (%s)\n", t.ID, t.Job, t.Schedule)
		}
	}

	for _, err := range errs {
		fmt.Fprintf(out, "FAIL %v\n", err)
	}
	return errors.Join(errs...)
}

func loadPath(path string) ([]*jobs.Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return jobs.LoadDir(path)
	}
	tpl, err := jobs.LoadTemplate(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []*jobs.Template{tpl}, nil
}
