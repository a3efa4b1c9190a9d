package main

import (
	"github.com/lunixbochs/evcorn/go/cmd"

	_ "github.com/lunixbochs/evcorn/go/cmd/console"
	_ "github.com/lunixbochs/evcorn/go/cmd/run"
	_ "github.com/lunixbochs/evcorn/go/cmd/trace"
)

func main() { cmd.Main() }
