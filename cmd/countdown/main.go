// Command countdown はカウントダウンタイマーのAPIサーバー、ワーカー、CLIクライアントを1つのバイナリで提供する。
//
//	countdown [serve|worker|migrate|healthcheck]
//	countdown watch|list
//	countdown add <title> <targetDate> [description]
//	countdown update <id> <title> <targetDate> [description]
//	countdown delete <id>
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/countdown/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "countdown: %v\n", err)
		os.Exit(1)
	}
}
