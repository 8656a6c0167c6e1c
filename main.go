package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"PNotify/logger"

	"github.com/spf13/cobra"
)

const longHelp = `
ppnotify pushes real-time notifications to signed-in users over WebSocket.

Notifications for users who are offline are buffered in memory and flushed,
in order, when they reconnect. Buffered notifications do not survive a
restart of the gateway process.`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "ppnotify",
		Short:         "Real-time notification gateway",
		Long:          strings.TrimSpace(longHelp),
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")

	root.AddCommand(newServeCmd(&envFiles), newListenCmd(&envFiles), newSendCmd(&envFiles), newHealthcheckCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("ppnotify: %+v", err)
		os.Exit(1)
	}
}
