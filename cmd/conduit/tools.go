package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conduit-ai/conduit/internal/config"
	"github.com/conduit-ai/conduit/pkg/registry"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools declared in the configuration",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		reg := registry.New()
		for _, tool := range cfg.Tools {
			schema, err := tool.SchemaJSON()
			if err != nil {
				fmt.Printf("Error in tool %q: %v\n", tool.Name, err)
				os.Exit(1)
			}
			if err := reg.RegisterSchema(tool.Name, tool.Description, tool.DefaultTimeout.Std(), schema); err != nil {
				fmt.Printf("Error in tool %q: %v\n", tool.Name, err)
				os.Exit(1)
			}
		}

		if len(reg.List()) == 0 {
			fmt.Println("No tools configured.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTIMEOUT\tDESCRIPTION")
		for _, name := range reg.List() {
			def, _ := reg.Definition(name)
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.DefaultTimeout, def.Description)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
