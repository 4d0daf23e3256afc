package main

import (
	_ "time/tzdata"

	"github.com/hray3182/lifeline-checkin/cmd/lifeline/root"
)

func main() {
	root.Execute()
}
