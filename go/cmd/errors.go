package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/kernel"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

// deepest stack trace in the wrap chain, which points closest to the failure
func innerStack(err error) errors.StackTrace {
	var st errors.StackTrace
	for err != nil {
		if s, ok := err.(stackTracer); ok {
			st = s.StackTrace()
		}
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return st
}

// PrintError prints err and a stack trace if one is attached.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	st := innerStack(err)
	if f, ok := kernel.IsFatal(err); ok {
		fmt.Fprintf(w, "Kernel halted in %s: %s\n", f.Event, f.Reason)
		if f.Err != nil {
			fmt.Fprintf(w, "Error: %s\n", f.Err)
			if inner := innerStack(f.Err); inner != nil {
				st = inner
			}
		}
	} else {
		fmt.Fprintf(w, "Error: %s\n", err)
	}
	if st == nil {
		return
	}
	// path, file:line, method
	var frames [][3]string
	for _, f := range st {
		var row [3]string
		row[1] = fmt.Sprintf("%s:%d", f, f)
		row[2] = fmt.Sprintf("%n", f)
		tmp := strings.SplitN(fmt.Sprintf("%+s", f), "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			row[2] = pathsplit[len(pathsplit)-1]
			row[0] = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, row)
		if row[2] == "main.main" {
			break
		}
	}
	var widths [2]int
	for _, f := range frames {
		for i := range widths {
			if len(f[i]) > widths[i] {
				widths[i] = len(f[i])
			}
		}
	}
	for _, f := range frames {
		for i, width := range widths {
			fmt.Fprintf(w, "%s%s | ", f[i], strings.Repeat(" ", width-len(f[i])))
		}
		fmt.Fprintf(w, "%s()\n", f[2])
	}
}
