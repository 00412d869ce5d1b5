// dripmanはコンテンツ逐次配信ダッシュボードのAPIサーバー。
// サブコマンド（serve / migrate / healthcheck）で起動モードを切り替える。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/dripman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
