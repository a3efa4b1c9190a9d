// Package console runs the firmware with an interactive prompt that can
// feed serial messages to the board and inspect the kernel while it runs.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"golang.org/x/sync/errgroup"

	"github.com/lunixbochs/evcorn/go/cmd"
	"github.com/lunixbochs/evcorn/go/cpu/mcu"
)

var errQuit = errors.New("quit")

// Context is passed to console commands.
type Context struct {
	*cmd.BoardCmd
	out io.Writer

	pause chan func()
	done  chan struct{}
}

func (c *Context) Printf(f string, args ...interface{}) {
	fmt.Fprintf(c.out, f, args...)
}

// Paused stops the kernel between traps and runs fn on its goroutine.
func (c *Context) Paused(fn func()) error {
	finished := make(chan struct{})
	c.Board.Stop()
	select {
	case c.pause <- func() { fn(); close(finished) }:
	case <-c.done:
		return errors.New("kernel is not running")
	}
	<-finished
	return nil
}

// runKernel runs the kernel until it halts or ctx ends, servicing pause
// requests whenever the board stops.
func (c *Context) runKernel(ctx context.Context) error {
	defer close(c.done)
	k := c.Kernel
	for {
		err := k.Run()
		switch errors.Cause(err) {
		case mcu.ErrStopped:
		case mcu.ErrBudget:
			c.Printf("cycle budget exhausted after %d cycles\n", c.Board.Cycles())
			return nil
		default:
			return err
		}
		select {
		case fn := <-c.pause:
			fn()
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Context) prompt(ctx context.Context, rl *readline.Instance) error {
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err != nil {
			return nil
		}
		if err := Run(c, line); err == errQuit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func historyPath() string {
	dirs := configdir.New("evcorn", "console")
	cache := dirs.QueryCacheFolder()
	if err := cache.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cache.Path, "history")
}

func Main(args []string) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "evcorn> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start console: %v\n", err)
		os.Exit(1)
	}

	c := cmd.NewBoardCmd()
	c.Tx = rl.Stdout()
	c.Output = rl.Stderr()
	ctx := &Context{BoardCmd: c, out: rl.Stdout(), pause: make(chan func()), done: make(chan struct{})}
	c.RunKernel = func() error {
		parent, cancel := context.WithCancel(context.Background())
		defer cancel()
		g, gctx := errgroup.WithContext(parent)
		g.Go(func() error {
			err := ctx.runKernel(gctx)
			if err != nil {
				// unblock the prompt
				rl.Close()
			}
			return err
		})
		g.Go(func() error {
			defer func() {
				cancel()
				c.Board.Stop()
			}()
			return ctx.prompt(gctx, rl)
		})
		return g.Wait()
	}
	status := c.Run(args)
	rl.Close()
	os.Exit(status)
}

func help(c *Context) {
	names := make([]string, 0, len(Commands))
	pad := 0
	for name := range Commands {
		names = append(names, name)
		if len(name) > pad {
			pad = len(name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		c.Printf("  %-*s  %s\n", pad, name, Commands[name].Desc)
	}
}

func init() { cmd.Register("console", "boot the firmware with an interactive console", Main) }
