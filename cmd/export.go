package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the published snapshot to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		snap, err := st.LoadSnapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "load snapshot")
		}

		if err := export.Workbook(exportOut, snap); err != nil {
			return err
		}

		zap.L().Info("export complete", zap.String("file", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "oreflow.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
