package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/ingest"
	"github.com/mega-minerals/oreflow/internal/store"
)

var (
	importDir    string
	importStream string
	importCSV    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import raw fact CSV files into the fact layer",
	Long:  "Loads delivered CSV files into the append-only fact tables. With --dir, files named <stream>.csv are matched to fact streams; with --stream and --csv, a single file is loaded.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importDir == "" && (importStream == "" || importCSV == "") {
			return eris.New("either --dir or both --stream and --csv are required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		files := map[string]string{}
		if importDir != "" {
			files, err = ingest.DiscoverDir(importDir, store.Streams())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return eris.Errorf("no fact files found in %s", importDir)
			}
		} else {
			if store.Columns(importStream) == nil {
				return eris.Errorf("unknown fact stream %s", importStream)
			}
			files[importStream] = importCSV
		}

		total := 0
		for stream, path := range files {
			recs, err := ingest.ReadFile(path)
			if err != nil {
				return err
			}
			n, err := st.InsertFacts(ctx, stream, recs)
			if err != nil {
				return err
			}
			total += n
			zap.L().Info("imported fact stream",
				zap.String("stream", stream),
				zap.String("file", path),
				zap.Int("rows", n),
			)
		}

		zap.L().Info("import complete", zap.Int("total_rows", total))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory of <stream>.csv fact files")
	importCmd.Flags().StringVar(&importStream, "stream", "", "fact stream name for a single file")
	importCmd.Flags().StringVar(&importCSV, "csv", "", "path to a single CSV file")
	rootCmd.AddCommand(importCmd)
}
