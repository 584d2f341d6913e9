package main

import (
	"os"

	"github.com/biomarker-assessment-engine/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
