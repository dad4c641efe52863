package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gedworks/archive-cli/internal/model"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect and edit the classification plan",
}

var taxonomyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print categories and subcategories",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		taxonomy, err := env.Store.Taxonomy(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, cat := range taxonomy {
			fmt.Fprintf(out, "%s\n", cat.Name)
			for _, sub := range cat.Subcategories {
				fmt.Fprintf(out, "  %s\n", sub)
			}
		}
		fmt.Fprintf(out, "%d categories, %d subcategories\n",
			taxonomy.CategoryCount(), taxonomy.SubcategoryCount())
		return nil
	},
}

var taxonomyAddCmd = &cobra.Command{
	Use:   "add <category>",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		created, err := env.Store.EnsureCategory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", model.NormalizeCategory(args[0]))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already present\n", model.NormalizeCategory(args[0]))
		}
		return nil
	},
}

var taxonomyAddSubCmd = &cobra.Command{
	Use:   "add-sub <category> <subcategory>",
	Short: "Add a subcategory (creates the category if missing)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		created, err := env.Store.EnsureSubcategory(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "added %s / %s\n", model.NormalizeCategory(args[0]), args[1])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s / %s already present\n", model.NormalizeCategory(args[0]), args[1])
		}
		return nil
	},
}

// taxonomyDoc is the YAML layout used by export and import.
type taxonomyDoc struct {
	Categories []struct {
		Name          string   `yaml:"name"`
		Subcategories []string `yaml:"subcategories,omitempty"`
	} `yaml:"categories"`
}

var taxonomyExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the taxonomy as YAML (stdout without a file argument)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		taxonomy, err := env.Store.Taxonomy(cmd.Context())
		if err != nil {
			return err
		}

		var doc taxonomyDoc
		for _, cat := range taxonomy {
			doc.Categories = append(doc.Categories, struct {
				Name          string   `yaml:"name"`
				Subcategories []string `yaml:"subcategories,omitempty"`
			}{Name: cat.Name, Subcategories: cat.Subcategories})
		}

		data, err := yaml.Marshal(&doc)
		if err != nil {
			return eris.Wrap(err, "encode taxonomy")
		}

		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return eris.Wrap(err, "write taxonomy file")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d categories to %s\n", taxonomy.CategoryCount(), args[0])
		return nil
	},
}

var taxonomyImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge categories from a YAML file into the taxonomy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read taxonomy file")
		}

		var doc taxonomyDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "decode taxonomy file")
		}

		addedCats, addedSubs := 0, 0
		for _, cat := range doc.Categories {
			created, err := env.Store.EnsureCategory(cmd.Context(), cat.Name)
			if err != nil {
				return err
			}
			if created {
				addedCats++
			}
			for _, sub := range cat.Subcategories {
				created, err := env.Store.EnsureSubcategory(cmd.Context(), cat.Name, sub)
				if err != nil {
					return err
				}
				if created {
					addedSubs++
				}
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported: %d new categories, %d new subcategories\n", addedCats, addedSubs)
		return nil
	},
}

func init() {
	taxonomyCmd.AddCommand(taxonomyListCmd, taxonomyAddCmd, taxonomyAddSubCmd, taxonomyExportCmd, taxonomyImportCmd)
	rootCmd.AddCommand(taxonomyCmd)
}
