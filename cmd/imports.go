package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ntewolde/local-buyer-intelligence/internal/utils"
	"github.com/ntewolde/local-buyer-intelligence/pkg/ingest"
	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
	"github.com/ntewolde/local-buyer-intelligence/pkg/storage"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Upload CSV source data and track ingestion runs",
}

var importRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload a CSV and register the import in one go",
	Long: `Uploads the file, then registers an import job for the returned
file_ref. The upload must succeed before the import is issued; if either
step fails the attempt is over and a fresh upload is needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")
		sourceType, _ := cmd.Flags().GetString("type")
		filePath, _ := cmd.Flags().GetString("file")
		if filePath == "" {
			return ingest.ErrNoFile
		}

		f, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer f.Close()

		client, err := authedClient()
		if err != nil {
			return err
		}
		orch := ingest.NewOrchestrator(client)
		ref, err := orch.ImportFile(cmd.Context(), geographyID, intel.SourceType(sourceType), filepath.Base(filePath), f)
		if err != nil {
			return err
		}
		utils.Log.Debugf("Import registered with file_ref=%s", ref)
		fmt.Println("Import started. Track it with 'lbi import runs'.")
		return nil
	},
}

var importUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a CSV and print its file_ref without starting an import",
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, _ := cmd.Flags().GetString("file")
		if filePath == "" {
			return ingest.ErrNoFile
		}

		f, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer f.Close()

		client, err := authedClient()
		if err != nil {
			return err
		}
		ref, err := ingest.NewOrchestrator(client).UploadFile(cmd.Context(), filepath.Base(filePath), f)
		if err != nil {
			return err
		}
		// A file_ref is single-use: feed it to exactly one 'import start'.
		fmt.Println(ref)
		return nil
	},
}

var importStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Register an import for an already uploaded file_ref",
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")
		sourceType, _ := cmd.Flags().GetString("type")
		fileRef, _ := cmd.Flags().GetString("file-ref")

		client, err := authedClient()
		if err != nil {
			return err
		}
		orch := ingest.NewOrchestrator(client)
		if err := orch.StartImport(cmd.Context(), geographyID, intel.SourceType(sourceType), ingest.FileRef(fileRef)); err != nil {
			return err
		}
		fmt.Println("Import started. Track it with 'lbi import runs'.")
		return nil
	},
}

var importRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the ingestion run history, newest first",
	Long: `Fetches the full run history. Progress is observed only by
re-running this command; there is no push channel. With --db the runs are
also cached in SQLite and newly appeared runs and status transitions since
the previous poll are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")

		client, err := authedClient()
		if err != nil {
			return err
		}
		runs, err := ingest.NewOrchestrator(client).ListRuns(cmd.Context(), ingest.RunFilter{GeographyID: geographyID})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No ingestion runs yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CREATED\tSOURCE\tSTATUS\tRECORDS\tERROR\t")
		for _, run := range runs {
			records := "-"
			if run.RecordsUpserted != nil {
				records = fmt.Sprintf("%d", *run.RecordsUpserted)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", run.CreatedAt.Format("2006-01-02 15:04"), run.SourceType, run.Status, records, run.ErrorMessage)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		useDB, _ := cmd.Flags().GetBool("db")
		if !useDB {
			return nil
		}
		return cacheRunsAndPrintChanges(cmd, runs)
	},
}

func cacheRunsAndPrintChanges(cmd *cobra.Command, runs []intel.IngestionRun) error {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return err
	}

	lock, err := utils.NewDBLock(dbPath)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	db, err := storage.Open(absPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	firstPoll := false
	if count, err := db.CachedRunCount(ctx); err != nil {
		utils.Log.Warnf("Could not get cached run count: %v", err)
	} else {
		firstPoll = count == 0
	}

	changes, err := db.UpsertRuns(ctx, runs)
	if err != nil {
		return err
	}

	if since, _ := cmd.Flags().GetString("since"); since != "" {
		sinceTime, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fmt.Errorf("bad --since timestamp (want RFC3339): %w", err)
		}
		changes, err = db.ChangesSince(ctx, sinceTime)
		if err != nil {
			return err
		}
	} else if firstPoll {
		// Everything is "added" on the first poll; printing it is noise.
		fmt.Println("\nFirst poll, run cache populated.")
		return nil
	}

	if len(changes) > 0 {
		fmt.Println()
		printRunChanges(changes)
	}
	return nil
}

func printRunChanges(changes []storage.Change) {
	for _, c := range changes {
		switch c.ChangeType {
		case "added":
			fmt.Printf("[new] %s import %s (%s)\n", c.SourceType, c.RunID, c.NewStatus)
		case "status_changed":
			fmt.Printf("[%s -> %s] %s import %s\n", c.OldStatus, c.NewStatus, c.SourceType, c.RunID)
		}
	}
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importRunCmd)
	importCmd.AddCommand(importUploadCmd)
	importCmd.AddCommand(importStartCmd)
	importCmd.AddCommand(importRunsCmd)

	importRunCmd.Flags().IntP("geography", "g", 0, "Target geography ID")
	importRunCmd.Flags().StringP("type", "t", "property", "Source type: property, events or channels")
	importRunCmd.Flags().StringP("file", "f", "", "CSV file to upload")

	importUploadCmd.Flags().StringP("file", "f", "", "CSV file to upload")

	importStartCmd.Flags().IntP("geography", "g", 0, "Target geography ID")
	importStartCmd.Flags().StringP("type", "t", "property", "Source type: property, events or channels")
	importStartCmd.Flags().String("file-ref", "", "file_ref returned by 'lbi import upload'")

	importRunsCmd.Flags().IntP("geography", "g", 0, "Filter by geography ID")
	importRunsCmd.Flags().Bool("db", false, "Cache runs in SQLite and print changes since the last poll")
	importRunsCmd.Flags().String("dbpath", "", "Path to the SQLite run cache (default: ~/.config/lbi/runs.sqlite)")
	importRunsCmd.Flags().String("since", "", "With --db, print changes since this RFC3339 timestamp")
}
