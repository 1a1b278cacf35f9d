package ftl

import (
	"context"
	"fmt"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/flash"
)

// CommandOp is a host request type.
type CommandOp uint8

const (
	CmdWrite CommandOp = iota
	CmdTrim
	CmdRead
)

// String returns the command name.
func (o CommandOp) String() string {
	switch o {
	case CmdWrite:
		return "write"
	case CmdTrim:
		return "trim"
	case CmdRead:
		return "read"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(o))
	}
}

// Command is one host request.
type Command struct {
	Op  CommandOp
	LSA flash.LSA
}

// Serve executes commands in arrival order until cmds is closed or ctx is
// cancelled. The first failing command stops the loop and its error is
// returned. Pending NAND requests are flushed before Serve returns.
func (f *FTL) Serve(ctx context.Context, cmds <-chan Command) error {
	defer f.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			if err := f.Execute(ctx, cmd); err != nil {
				logger.ErrorCtx(ctx, "FTL: command failed",
					logger.KeyRequest, cmd.Op.String(),
					logger.KeyLSA, cmd.LSA,
					logger.KeyError, err)
				return err
			}
		}
	}
}

// Execute runs a single command.
func (f *FTL) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Op {
	case CmdWrite:
		return f.Write(ctx, cmd.LSA)
	case CmdTrim:
		return f.Trim(ctx, cmd.LSA)
	case CmdRead:
		return f.Read(ctx, cmd.LSA)
	default:
		return fmt.Errorf("ftl: unknown command %s", cmd.Op)
	}
}
