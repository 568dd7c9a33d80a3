package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dataspect %s\n", version.GitRelease)
		fmt.Printf("  go:     %s %s/%s\n", version.GoInfo, runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  commit: %s\n", version.GitCommit)
		fmt.Printf("  date:   %s\n", version.GitCommitDate)
	},
}
