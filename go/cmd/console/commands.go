package console

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/lunixbochs/argjoy"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/serial"
)

type Command struct {
	Name string
	Desc string
	Run  interface{}
}

var Commands = make(map[string]*Command)

func command(c *Command) *Command {
	fn := reflect.ValueOf(c.Run)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("Command.Run must be a func: got (%T) %#v\n", c.Run, c.Run))
	}
	Commands[c.Name] = c
	return c
}

// strCodec converts command words to numeric parameters. Numbers take
// the usual 0x and 0 prefixes.
func strCodec(arg interface{}, vals []interface{}) error {
	s, ok := vals[0].(string)
	if !ok {
		return argjoy.NoMatch
	}
	switch v := arg.(type) {
	case *string:
		*v = s
		return nil
	case *uint32:
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return errors.Errorf("bad number %q", s)
		}
		*v = uint32(n)
		return nil
	}
	return argjoy.NoMatch
}

var aj = argjoy.NewArgjoy()

func init() { aj.Register(strCodec) }

// Run parses and executes one console line.
func Run(c *Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		c.Printf("parse error: %v\n", err)
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	name, args := args[0], args[1:]
	cmd, ok := Commands[name]
	if !ok {
		c.Printf("command not found. try help\n")
		return nil
	}
	out, err := aj.Call(cmd.Run, c, args)
	if err != nil {
		c.Printf("error: %v\n", err)
		return nil
	}
	if len(out) > 0 {
		if err, ok := out[0].(error); ok {
			if err == errQuit {
				return err
			}
			c.Printf("error: %v\n", err)
		}
	}
	return nil
}

func inject(c *Context, m *serial.Message) error {
	c.Board.Uart.InjectMessage(m)
	if c.Config.Verbose {
		c.Printf("sent %s\n", m)
	}
	return nil
}

var HelpCmd = command(&Command{
	Name: "help",
	Desc: "List commands.",
	Run: func(c *Context) error {
		help(c)
		return nil
	},
})

var MoistureCmd = command(&Command{
	Name: "moisture",
	Desc: "Send a soil moisture reading over serial.",
	Run: func(c *Context, level uint32) error {
		return inject(c, serial.NewMessage(serial.ChangeSoilMoisture, level))
	},
})

var SendCmd = command(&Command{
	Name: "send",
	Desc: "Send a serial message: send <moisture|water|dry|wet|ack|empty> <payload>.",
	Run: func(c *Context, name string, payload uint32) error {
		m, err := serial.Parse(name, payload)
		if err != nil {
			return err
		}
		return inject(c, m)
	},
})

var RawCmd = command(&Command{
	Name: "raw",
	Desc: "Send a raw byte over serial.",
	Run: func(c *Context, b uint32) error {
		c.Board.Uart.Inject([]byte{byte(b)})
		return nil
	},
})

var StatusCmd = command(&Command{
	Name: "status",
	Desc: "Show events, the ready queue and the shared stack.",
	Run: func(c *Context) error {
		var status string
		if err := c.Paused(func() { status = c.Kernel.Status() }); err != nil {
			return err
		}
		c.Printf("%s", status)
		return nil
	},
})

var SensorCmd = command(&Command{
	Name: "sensor",
	Desc: "Show the stored soil moisture level.",
	Run: func(c *Context) error {
		var level uint32
		err := c.Paused(func() { level = c.Kernel.Sensors().Read(kernel.SensorSoilMoisture) })
		if err != nil {
			return err
		}
		c.Printf("moisture %d\n", level)
		return nil
	},
})

var CyclesCmd = command(&Command{
	Name: "cycles",
	Desc: "Show the cycle counter.",
	Run: func(c *Context) error {
		var n uint64
		if err := c.Paused(func() { n = c.Board.Cycles() }); err != nil {
			return err
		}
		c.Printf("%d\n", n)
		return nil
	},
})

var QuitCmd = command(&Command{
	Name: "quit",
	Desc: "Stop the board and exit.",
	Run: func(c *Context) error {
		return errQuit
	},
})
