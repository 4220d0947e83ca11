package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/embedding"
	"github.com/meysamhadeli/docai/fingerprint"
	"github.com/meysamhadeli/docai/utils"
)

// resetCacheCmd represents the reset-cache command
var resetCacheCmd = &cobra.Command{
	Use:   "reset-cache",
	Short: "Reset the fingerprint cache and description index for docai",
	Long: `The 'reset-cache' command removes the fingerprint cache and the description index of the repository.
The next run then treats every file as changed. Stored descriptions in the context summary are kept
and are indexed again on the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		stats, _ := cmd.Flags().GetBool("stats")
		return handleResetCacheCommand(force, stats, cmd)
	},
}

func init() {
	resetCacheCmd.Flags().String("path", "", "Path of the repository (defaults to the current directory).")
	resetCacheCmd.Flags().BoolP("force", "f", false, "Force cache reset without confirmation")
	resetCacheCmd.Flags().BoolP("stats", "s", false, "Show cache statistics instead of resetting")

	rootCmd.AddCommand(resetCacheCmd)
}

func handleResetCacheCommand(force bool, showStats bool, cmd *cobra.Command) error {
	rootDependencies, err := handleRootCommand(cmd)
	if err != nil {
		return err
	}
	defer rootDependencies.Close()

	cachePath := resolvePath(rootDependencies.RepoPath, rootDependencies.Config.PipelineConfig.CacheFile)
	indexPath := embedding.DefaultIndexPath(resolvePath(rootDependencies.RepoPath, rootDependencies.Config.PipelineConfig.IndexDir))

	if showStats {
		return printCacheStats(cachePath, indexPath)
	}

	if !force {
		confirmed, err := utils.ConfirmPrompt(context.Background(), bufio.NewReader(os.Stdin), os.Stdout,
			"Are you sure you want to reset the fingerprint cache and description index?")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println(lipgloss.Yellow.Render("Cache reset cancelled."))
			return nil
		}
	}

	spinnerInstance, _ := spinner.Start("Resetting cache...")

	if err := fingerprint.Reset(cachePath); err != nil {
		spinnerInstance.Stop()
		fmt.Print("\r")
		return err
	}
	if _, err := embedding.RemoveIndex(indexPath); err != nil {
		spinnerInstance.Stop()
		fmt.Print("\r")
		return err
	}

	spinnerInstance.Stop()
	fmt.Print("\r")
	fmt.Println(lipgloss.Green.Render("✓ Cache has been successfully reset!"))
	return nil
}

func printCacheStats(cachePath string, indexPath string) error {
	fmt.Println(lipgloss.Info.Render("Cache Statistics:"))

	cacheStats, err := fingerprint.FileStats(cachePath)
	if err != nil {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Warning: Could not show statistics: %v", err)))
		return nil
	}

	fmt.Printf("  Cache File: %s\n", cachePath)
	if exists, _ := cacheStats["exists"].(bool); !exists {
		fmt.Println("  No cache yet")
	} else {
		if entries, ok := cacheStats["entries"].(int); ok {
			fmt.Printf("  Cached Files: %d\n", entries)
		}
		if size, ok := cacheStats["total_size"].(int64); ok {
			fmt.Printf("  Total Size: %s\n", humanize.Bytes(uint64(size)))
		}
		if modTime, ok := cacheStats["mod_time"].(time.Time); ok {
			fmt.Printf("  Last Updated: %s\n", humanize.Time(modTime))
		}
	}

	var indexSize int64
	for _, file := range []string{indexPath, indexPath + ".meta"} {
		if info, err := os.Stat(file); err == nil {
			indexSize += info.Size()
		}
	}
	fmt.Printf("  Index: %s (%s)\n", indexPath, humanize.Bytes(uint64(indexSize)))
	return nil
}

func resolvePath(repoPath string, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(repoPath, name)
}
