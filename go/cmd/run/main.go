package run

import (
	"os"

	"github.com/lunixbochs/evcorn/go/cmd"
)

func Main(args []string) {
	os.Exit(cmd.NewBoardCmd().Run(args))
}

func init() { cmd.Register("run", "boot the irrigation firmware", Main) }
