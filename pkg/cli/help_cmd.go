package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/htmlshot/pkg/cli/help"
)

var topicsCmd = &cobra.Command{
	Use:   "topics [topic]",
	Short: "Show help for a topic",
	Long:  "Show extended documentation. Run without arguments to list topics.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			fmt.Fprint(out, "htmlshot - Help Topics\n\nAvailable Topics:\n")
			fmt.Fprint(out, help.ListTopics())
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Usage: htmlshot topics <topic>")
			return nil
		}
		content, err := help.GetTopic(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}
