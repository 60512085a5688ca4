package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doctagger/doctagger/config"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/pipeline"
	"github.com/doctagger/doctagger/internal/service/document"
	"github.com/doctagger/doctagger/pkg/logger"
)

const usage = `Usage: doctagger <command> [flags]

Commands:
  process <file.pdf>   process a single document
  batch                process every pending file in the inbox
  watch                watch the inbox and process new files as they arrive
  scan                 list the files waiting in the inbox
  status               show service configuration and tool availability
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Get()
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding("console"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	svc, err := document.GetService(cfg, nil, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cmdErr error
	switch os.Args[1] {
	case "process":
		cmdErr = runProcess(ctx, svc, os.Args[2:])
	case "batch":
		cmdErr = runBatch(ctx, svc, os.Args[2:])
	case "watch":
		cmdErr = runWatch(ctx, svc, os.Args[2:])
	case "scan":
		cmdErr = runScan(svc)
	case "status":
		cmdErr = runStatus(ctx, svc)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func runProcess(ctx context.Context, svc *document.Service, args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	skipOCR := fs.Bool("skip-ocr", false, "skip the OCR stage")
	skipArchive := fs.Bool("skip-archive", false, "tag in place without moving to the archive")
	force := fs.Bool("force", false, "reprocess even if a sidecar marks the file complete")
	prompt := fs.String("prompt", "", "custom tagging prompt")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("process requires exactly one file argument")
	}

	result, err := svc.ProcessSync(ctx, fs.Arg(0), pipeline.Options{
		SkipOCR:        *skipOCR,
		SkipArchive:    *skipArchive,
		ForceReprocess: *force,
		CustomPrompt:   *prompt,
	})
	if err != nil {
		return err
	}

	printJSON(result)
	if result.Status == models.StatusFailed {
		return fmt.Errorf("processing failed: %s", result.Error)
	}
	return nil
}

func runBatch(ctx context.Context, svc *document.Service, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	force := fs.Bool("force-reprocess", false, "reprocess files already marked complete by a sidecar")
	fs.Parse(args)

	if err := svc.StartInboxBatch(ctx, *force); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	stopped := false
	for {
		select {
		case <-ctx.Done():
			// let in-flight files finish before reporting
			if !stopped {
				svc.StopInboxBatch()
				stopped = true
			}
			time.Sleep(time.Second)
		case <-ticker.C:
		}

		p := svc.InboxBatchProgress()
		done := p.Processed + p.Skipped + p.Failed
		fmt.Printf("\r%s %d/%d (%.1f%%)  ", p.Status, done, p.TotalFiles, p.Percent)
		if !p.Status.Active() {
			fmt.Println()
			printJSON(p)
			if p.Status == models.BatchCancelled {
				return fmt.Errorf("batch cancelled")
			}
			return nil
		}
	}
}

func runWatch(ctx context.Context, svc *document.Service, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	existing := fs.Bool("process-existing", false, "also process files already in the inbox")
	fs.Parse(args)

	if *existing {
		files, err := svc.ListInbox()
		if err != nil {
			return err
		}
		for _, f := range files {
			if f.Status == "pending" {
				svc.ProcessPath(ctx, f.Path, pipeline.Options{})
			}
		}
	}

	if err := svc.StartWatcher(ctx); err != nil {
		return err
	}
	fmt.Println("watching inbox, press Ctrl-C to stop")
	<-ctx.Done()
	svc.StopWatcher()
	fmt.Println("\nwatcher stopped")
	return nil
}

func runScan(svc *document.Service) error {
	files, err := svc.ListInbox()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("inbox is empty")
		return nil
	}
	for _, f := range files {
		fmt.Printf("%-10s %10d  %s\n", f.Status, f.Size, f.Name)
	}
	return nil
}

func runStatus(ctx context.Context, svc *document.Service) error {
	printJSON(svc.SystemStatus(ctx))
	return nil
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
