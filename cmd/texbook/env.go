package main

import (
	"io"
	"os"
	"time"

	texbook "github.com/alnah/go-texbook"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer

	// Options are appended to every NewBuilder call. Tests use them to
	// swap the compiler runner and the math engine for fakes.
	Options []texbook.Option
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
