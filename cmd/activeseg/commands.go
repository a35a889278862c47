package main

import (
	"github.com/spf13/cobra"

	_ "github.com/rushteam/activeseg/config/builders"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logFormat  string

	// run / select
	maxIterations int
	resume        bool
	reportPath    string

	// status
	verifyEntries bool

	// import
	vocRoot    string
	keyList    string
	resizeSize []int
	importJobs int

	rootCmd = &cobra.Command{
		Use:   "activeseg",
		Short: "Active learning sample selection for semantic segmentation",
		Long: `activeseg runs the train / select / expand loop over an image pool,
asking a remote model service for predictions and a remote trainer for updates.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadApp(cmd)
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the active learning loop until the pool is exhausted",
		RunE:  runLoop,
	}

	selectCmd = &cobra.Command{
		Use:   "select",
		Short: "Score the remaining pool once and print the chosen keys without training",
		RunE:  runSelect,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the persisted pool state",
		RunE:  runStatus,
	}

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import a VOC-style dataset (JPEGImages + SegmentationClass) into the sample store",
		RunE:  runImport,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config (default: activeseg.yaml, configs/activeseg.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Stop after this many selection rounds (overrides loop.max_iterations)")
	runCmd.Flags().BoolVar(&resume, "resume", false, "Resume from the persisted pool state")
	runCmd.Flags().StringVarP(&reportPath, "report", "o", "", "Write round reports as JSON to this file instead of stdout")

	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().StringVarP(&reportPath, "report", "o", "", "Write the selection as JSON to this file instead of stdout")

	statusCmd.Flags().BoolVar(&verifyEntries, "verify", false, "Load every training entry through the sample store")
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&vocRoot, "root", "", "Dataset root containing JPEGImages/ and SegmentationClass/")
	importCmd.Flags().StringVar(&keyList, "list", "", "Image set file, one key per line (e.g. ImageSets/Segmentation/train.txt)")
	importCmd.Flags().IntSliceVar(&resizeSize, "resize", nil, "Resize to WIDTH,HEIGHT before storing")
	importCmd.Flags().IntVarP(&importJobs, "jobs", "j", 4, "Parallel decode workers")
	_ = importCmd.MarkFlagRequired("root")
	_ = importCmd.MarkFlagRequired("list")
}
