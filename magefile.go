//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target when running mage without arguments.
var Default = Build

// Build builds the server binary.
func Build() error {
	fmt.Println("Building server...")
	return sh.Run("go", "build", "-o", "bin/server", "./cmd/server")
}

// Docs regenerates the swagger documentation from handler annotations.
func Docs() error {
	fmt.Println("Generating swagger docs...")
	return sh.Run("swag", "init", "-g", "cmd/server/docs.go", "-o", "cmd/server/docs", "--outputTypes", "go", "--parseInternal")
}

// Test runs all tests with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return sh.RunV("go", "test", "-race", "./...")
}

// TestCover runs tests with coverage.
func TestCover() error {
	fmt.Println("Running tests with coverage...")
	return sh.Run("go", "test", "-race", "-cover", "-coverprofile=coverage.out", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	fmt.Println("Running linter...")
	return sh.Run("golangci-lint", "run", "./...")
}

// Vet runs go vet.
func Vet() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	_ = os.Remove("coverage.out")
	return nil
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Running go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// All runs tidy, vet, lint, test, and build.
func All() error {
	mg.SerialDeps(Tidy, Vet, Lint, Test, Build)
	return nil
}

// Dev builds and runs the server against the in-memory store.
func Dev() error {
	mg.Deps(Build)
	fmt.Println("Starting server...")
	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(),
		"PROJECTHUB_STORE_DRIVER=memory",
		"PROJECTHUB_LOG_LEVEL=debug",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// CI runs the CI pipeline (tidy, vet, test with coverage).
func CI() error {
	mg.SerialDeps(Tidy, Vet, TestCover)
	return nil
}

// Install installs development tools.
func Install() error {
	fmt.Println("Installing development tools...")
	tools := []string{
		"github.com/swaggo/swag/cmd/swag@v1.16.6",
		"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
	}

	for _, tool := range tools {
		fmt.Printf("  Installing %s\n", tool)
		if err := sh.Run("go", "install", tool); err != nil {
			return fmt.Errorf("installing %s: %w", tool, err)
		}
	}

	return nil
}
