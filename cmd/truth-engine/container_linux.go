package main

import "github.com/criyle/go-sandbox/container"

// container init re-executes the server binary, Init never returns there
func init() {
	container.Init()
}
