// Package prompt decouples interactive confirmation from the entity stores.
// A destructive operation asks its Confirmer before touching local state or
// the network, so the core mutation logic carries no terminal dependency.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer answers yes/no questions before destructive operations.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Func adapts a function to the Confirmer interface.
type Func func(ctx context.Context, question string) (bool, error)

func (f Func) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// Always confirms unconditionally. Used by non-interactive runs that pass
// --yes.
var Always = Func(func(context.Context, string) (bool, error) { return true, nil })

// Terminal asks on out and reads a y/n answer from in.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(t.Out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
