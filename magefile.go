//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName         = "devserve"
	cmdDir             = "./cmd/devserve"
	binDir             = "bin"
	coverageDir        = "coverage"
	defaultTestTimeout = "10m"
)

// Default target runs all checks and builds.
var Default = All

// All runs fmt, lint, and test, then builds.
func All() error {
	mg.Deps(Fmt, Lint, Test)
	return Build()
}

// Build compiles the devserve binary for the current platform.
func Build() error {
	fmt.Println("Building", binaryName+"...")

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}

	out := filepath.Join(binDir, binaryName)
	if runtime.GOOS == "windows" {
		out += ".exe"
	}

	version := os.Getenv("DEVSERVE_VERSION")
	if version == "" {
		version = "dev"
	}

	ldflags := fmt.Sprintf("-s -w -X github.com/devlocal-io/devserve/cmd/devserve/commands.Version=%s", version)
	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdDir)
}

// Test runs the unit tests.
func Test() error {
	fmt.Println("Running tests...")
	return sh.RunV("go", "test", "-timeout", defaultTestTimeout, "-race", "./...")
}

// TestShort runs only the fast tests.
func TestShort() error {
	return sh.RunV("go", "test", "-short", "-timeout", "2m", "./...")
}

// Cover runs tests with coverage and writes an HTML report.
func Cover() error {
	if err := os.MkdirAll(coverageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create coverage directory: %w", err)
	}

	profile := filepath.Join(coverageDir, "coverage.out")
	if err := sh.RunV("go", "test", "-timeout", defaultTestTimeout,
		"-coverprofile", profile, "./..."); err != nil {
		return err
	}

	report := filepath.Join(coverageDir, "coverage.html")
	return sh.RunV("go", "tool", "cover", "-html", profile, "-o", report)
}

// Lint runs go vet.
func Lint() error {
	fmt.Println("Running go vet...")
	return sh.RunV("go", "vet", "./...")
}

// Fmt formats all Go source files.
func Fmt() error {
	return sh.RunV("gofmt", "-w", "-l", ".")
}

// Clean removes build and coverage artifacts.
func Clean() error {
	for _, dir := range []string{binDir, coverageDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
