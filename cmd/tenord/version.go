package main

// Version is set at build time with -ldflags.
var Version = "dev"

func version() string {
	return Version
}
