package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

var version string
var commitHash string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of edgeAudio",
	Long:  `All software has versions. This is edgeAudio's.`,
	Run: func(cmd *cobra.Command, args []string) {
		printEdgeAudioVersion()
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}

func printEdgeAudioVersion() {
	if version == "" {
		version = "dev"
	}
	buildDate := time.Now().Format(time.RFC3339)
	fmt.Printf("edgeAudio Version: %s, %s/%s, BuildDate: %s, Commit: %s\n",
		version, runtime.GOOS, runtime.GOARCH, buildDate, commitHash)
}
