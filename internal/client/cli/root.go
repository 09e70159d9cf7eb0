package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

func (a *App) getStatus() string {
	pending := 0
	for _, t := range a.uploads.Tasks() {
		if !t.Status.Terminal() {
			pending++
		}
	}
	s := "(" + a.containerID
	if pending > 0 {
		s += fmt.Sprintf(", %d uploading", pending)
	}
	return s + ")"
}

func (a *App) Root(ctx context.Context) {
	fmt.Println("Eras capsule CLI (type 'help' for commands)")

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
