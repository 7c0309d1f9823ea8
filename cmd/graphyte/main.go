// Command graphyte analyzes a document through a staged language-model
// pipeline.
package main

import (
	"os"

	"github.com/leofalp/graphyte/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
