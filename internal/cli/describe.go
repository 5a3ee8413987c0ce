package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientJobs/internal/jobs"
)

func init() {
	describeCmd.Flags().StringVar(&describeFormat, "convert", "", "Print the document re-encoded as json, yaml or toml instead")
	rootCmd.AddCommand(describeCmd)
}

var describeFormat string

var describeCmd = &cobra.Command{
	Use:   "describe FILE",
	Short: "Show the task graph of a job document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := jobs.LoadTemplate(args[0])
		if err != nil {
			return err
		}
		if describeFormat != "" {
			b, err := jobs.EncodeTemplate(tpl, jobs.Format(describeFormat))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		}
		describe(cmd.OutOrStdout(), tpl)
		return nil
	},
}

func describe(out io.Writer, tpl *jobs.Template) {
	fmt.Fprintf(out, "Job:      %s\n", tpl.Label)
	fmt.Fprintf(out, "Identity: %s\n", tpl.ID)
	fmt.Fprintf(out, "Start:    %d\n", tpl.Tasks.Current)
	fmt.Fprintf(out, "On fail:  %s\n", tpl.OnFail)
	fmt.Fprintln(out)

	for _, id := range tpl.Tasks.IDs() {
		node, _ := tpl.Tasks.Node(id)
		next := tpl.Tasks.ResolveNext(node)
		marker := " "
		if id == tpl.Tasks.Current {
			marker = ">"
		}
		if _, ok := tpl.Tasks.Node(next); ok {
			fmt.Fprintf(out, "%s %5d  %-32s -> %d\n", marker, id, node.Task.Describe(), next)
		} else {
			fmt.Fprintf(out, "%s %5d  %-32s -> end\n", marker, id, node.Task.Describe())
		}
	}
}
