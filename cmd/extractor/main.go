// Command extractor pulls gene and disease mentions out of a PubMed Central
// article, resolves the genes against HGNC and stores the associations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mkoziy/genome/extractor/internal/errs"
)

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "extractor:", err)
	}
	os.Exit(errs.ExitCode(err))
}
