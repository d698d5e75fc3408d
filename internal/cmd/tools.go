package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pmorten/stagehand/internal/tool"
)

// NewToolsCommand creates the tools command
func NewToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools plans can use",
		Long:  `List every registered tool with its parameter schema, as offered to the planner.`,
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, _ []string) error {
	// Listing only needs names and schemas; no generator or shell config.
	registry, err := tool.DefaultRegistry(".", nil, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range registry.Names() {
		t, ok := registry.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s\n  %s\n", t.Name(), t.Description())

		schema := t.Schema()
		params := make([]string, 0, len(schema))
		for param := range schema {
			params = append(params, param)
		}
		sort.Strings(params)
		for _, param := range params {
			spec := schema[param]
			required := ""
			if spec.Required {
				required = ", required"
			}
			fmt.Fprintf(out, "    %s (%s%s): %s\n", param, spec.Type, required, spec.Description)
		}
		fmt.Fprintln(out)
	}
	return nil
}
