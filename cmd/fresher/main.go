// Command fresher runs a coding agent in a loop with a fresh context per
// iteration.
package main

import (
	"context"
	"os"

	"github.com/shanewwarren/fresher-sub000/cmd"
)

func main() {
	os.Exit(cmd.Execute(context.Background()))
}
