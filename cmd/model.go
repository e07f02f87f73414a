package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"mpgserve/db"
	"mpgserve/ml"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect model artifacts and manage the SQLite registry",
	}
	cmd.AddCommand(newModelInspectCmd(), newModelImportCmd(), newModelListCmd())
	return cmd
}

func newModelInspectCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Validate an artifact and print its parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := ml.NewModelStore()
			params, err := loadModel(store, args[0], name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:      %s\n", store.Source())
			fmt.Fprintf(out, "intercept:   %.4f\n", params.Intercept)
			fmt.Fprintf(out, "coefficient: %.4f\n", params.Coefficient)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", db.DefaultModelName, "registry model name, for .db paths")
	return cmd
}

func newModelImportCmd() *cobra.Command {
	var (
		dbPath string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "import <artifact>",
		Short: "Store a validated artifact in the SQLite registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := ml.NewModelStore().Load(args[0])
			if err != nil {
				return err
			}

			registry, err := db.OpenRegistry(dbPath)
			if err != nil {
				return err
			}
			defer registry.Close()

			id, err := registry.Import(name, params, args[0])
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s (id %d)\n", args[0], name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "models.db", "registry database path")
	cmd.Flags().StringVar(&name, "name", db.DefaultModelName, "registry model name")
	return cmd
}

func newModelListCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered models, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := db.OpenRegistry(dbPath)
			if err != nil {
				return err
			}
			defer registry.Close()

			records, err := registry.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tINTERCEPT\tCOEFFICIENT\tSOURCE\tCREATED")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%s\t%s\n",
					rec.ID, rec.Name, rec.Parameters.Intercept, rec.Parameters.Coefficient,
					rec.Source, rec.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "models.db", "registry database path")
	return cmd
}
