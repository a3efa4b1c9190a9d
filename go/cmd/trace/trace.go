package trace

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/cmd"
	"github.com/lunixbochs/evcorn/go/cpu/mcu"
	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/models/trace"
)

// each calls fn for every record in tf
func each(tf *trace.TraceReader, fn func(r *trace.Record)) error {
	for {
		r, err := tf.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace record")
		}
		fn(r)
	}
}

func PrintJson(w io.Writer, tf *trace.TraceReader) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(&tf.Header); err != nil {
		return errors.Wrap(err, "error printing header")
	}
	return each(tf, func(r *trace.Record) { enc.Encode(r) })
}

// describe names the routine or exception a record refers to.
func describe(r *trace.Record) string {
	switch r.Op {
	case trace.OP_SYSCALL:
		if r.Num < uint32(kernel.NumSyscalls) {
			return fmt.Sprintf("%s (%s)", r, kernel.Routine(r.Num))
		}
	case trace.OP_IRQ:
		if r.Num != 0 {
			return fmt.Sprintf("%s (%s)", r, mcu.ExcName(r.Num))
		}
	}
	return r.String()
}

func PrintPretty(w io.Writer, tf *trace.TraceReader) error {
	fmt.Fprintf(w, "%s v%d, %d events\n", tf.Header.Magic, tf.Header.Version, tf.Header.Events)
	return each(tf, func(r *trace.Record) { fmt.Fprintln(w, describe(r)) })
}

// PrintStats tabulates record counts per event.
func PrintStats(w io.Writer, tf *trace.TraceReader, color bool) error {
	ops := []uint8{trace.OP_SWITCH, trace.OP_SYSCALL, trace.OP_IRQ, trace.OP_SIGNAL, trace.OP_COALESCE, trace.OP_UNKNOWN, trace.OP_FAULT}
	counts := make([][]int, tf.Header.Events)
	for i := range counts {
		counts[i] = make([]int, len(ops)+1)
	}
	err := each(tf, func(r *trace.Record) {
		if int(r.Event) >= len(counts) {
			return
		}
		if int(r.Op) >= 1 && int(r.Op) <= len(ops) {
			counts[r.Event][r.Op]++
		}
	})
	if err != nil {
		return err
	}
	table := &models.StatusTable{Header: []string{"event"}}
	for _, op := range ops {
		table.Header = append(table.Header, (&trace.Record{Op: op}).OpName())
	}
	for id, row := range counts {
		cols := []string{kernel.EventID(id).String()}
		for _, n := range row[1:] {
			cols = append(cols, strconv.Itoa(n))
		}
		style := ""
		if row[trace.OP_FAULT] > 0 {
			style = models.ColorFatal
		}
		table.Add(style, cols...)
	}
	fmt.Fprintln(w, table.String(color))
	return nil
}

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output trace as line-delimited JSON objects")
	statsFlag := fs.Bool("stats", false, "print per-event record counts")
	colorFlag := fs.Bool("color", false, "colored output")
	fs.Usage = func() {
		fmt.Printf("Usage: %s [options] <tracefile>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open: %s %v\n", fs.Arg(0), err)
		os.Exit(1)
	}
	defer f.Close()
	tf, err := trace.NewReader(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening trace file: %v\n", err)
		os.Exit(1)
	}
	switch {
	case *jsonFlag:
		err = PrintJson(os.Stdout, tf)
	case *statsFlag:
		err = PrintStats(os.Stdout, tf, *colorFlag)
	default:
		err = PrintPretty(os.Stdout, tf)
	}
	if err != nil {
		cmd.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() { cmd.Register("trace", "dump a saved kernel trace", Main) }
