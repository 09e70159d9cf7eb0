package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Attach(ctx context.Context, path string) error
	AttachVault(ctx context.Context, vaultID, name string, sizeBytes int64) error
	List(ctx context.Context) error
	Status(ctx context.Context) error
	Pause(ctx context.Context, taskID string) error
	Resume(ctx context.Context, taskID string) error
	RetryTask(ctx context.Context, taskID string) error
	CancelTask(ctx context.Context, taskID string) error
	Remove(ctx context.Context, id string) error
	Set(ctx context.Context, field, value string) error
	SaveDraft(ctx context.Context) error
	RestoreDraft(ctx context.Context) error
	Finalize(ctx context.Context) error
}

const helpText = `Available commands:
  attach <path>                 upload a local file
  vault <vault-id> <name> <b>   copy a vault file server-side (size in bytes)
  list                          show attached media
  status                        show upload tasks
  pause|resume|retry|cancel <task-id>
  remove <media-id>             detach (and delete durable) media
  set <title|message|theme|deliver|recipients> <value>
  save | restore                draft snapshot
  finalize                      create the capsule
  exit | quit`

// runREPL starts a simple read-eval-print loop for the capsule CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Any errors returned by command handlers are ignored here; handlers print
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("eras %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "attach":
			if len(args) < 1 {
				printlnFn("Usage: attach <path>")
				continue
			}
			_ = a.Attach(ctx, args[0])

		case "vault":
			if len(args) < 3 {
				printlnFn("Usage: vault <vault-id> <name> <size-bytes>")
				continue
			}
			size, err := parseSize(args[2])
			if err != nil {
				printlnFn("size must be an integer byte count")
				continue
			}
			_ = a.AttachVault(ctx, args[0], args[1], size)

		case "l", "list":
			_ = a.List(ctx)

		case "status":
			_ = a.Status(ctx)

		case "pause":
			if len(args) < 1 {
				printlnFn("Usage: pause <task-id>")
				continue
			}
			_ = a.Pause(ctx, args[0])

		case "resume":
			if len(args) < 1 {
				printlnFn("Usage: resume <task-id>")
				continue
			}
			_ = a.Resume(ctx, args[0])

		case "retry":
			if len(args) < 1 {
				printlnFn("Usage: retry <task-id>")
				continue
			}
			_ = a.RetryTask(ctx, args[0])

		case "cancel":
			if len(args) < 1 {
				printlnFn("Usage: cancel <task-id>")
				continue
			}
			_ = a.CancelTask(ctx, args[0])

		case "remove":
			if len(args) < 1 {
				printlnFn("Usage: remove <media-id>")
				continue
			}
			_ = a.Remove(ctx, args[0])

		case "set":
			if len(args) < 2 {
				printlnFn("Usage: set <field> <value>")
				continue
			}
			_ = a.Set(ctx, args[0], strings.Join(args[1:], " "))

		case "save":
			_ = a.SaveDraft(ctx)

		case "restore":
			_ = a.RestoreDraft(ctx)

		case "finalize":
			_ = a.Finalize(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
