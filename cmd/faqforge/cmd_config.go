package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd prints the resolved configuration for the selected environment.
var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Show resolved configuration",
	Long: `Prints the configuration resolved for the selected environment,
after merging the base document, the environment overlay, and secret
bindings. Secret values are masked.

With a dotted path argument, prints only the value at that path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	doc, err := resolveDocument()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		v, err := doc.Get(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}

	values := doc.Values()
	if secrets, ok := values["secrets"].(map[string]interface{}); ok {
		masked := make(map[string]interface{}, len(secrets))
		for name := range secrets {
			masked[name] = "********"
		}
		values["secrets"] = masked
	}

	out, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	fmt.Printf("# environment: %s\n%s", doc.Environment(), out)
	return nil
}
