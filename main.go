package main

import (
	"github.com/nuhaid/barakah/backend"
	"github.com/nuhaid/barakah/frontend"
)

func main() {
	// The backend runs in-process alongside the interactive shell; the
	// shell's client still talks to it over HTTP, so the two halves can be
	// split into separate binaries without touching either.
	go backend.RunBackend()
	frontend.RunFrontend()
}
