// Command indexc compiles an index-notation source file into target
// source text, optionally building it into a shared library and
// populating the build cache.
//
// Grounded on the teacher's own main.go (flag-based CLI, explicit exit
// codes 0/1/2, read-input-then-dispatch structure) and
// cmd/ccompiler/main.go (a pipeline driver printing each stage).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"indexc/pkg/build"
	"indexc/pkg/cache"
	"indexc/pkg/component"
	"indexc/pkg/lower"
	"indexc/pkg/render/c"
)

// Exit codes per spec.md §6: 0 success, 1 usage error, 2 compilation error.
const (
	exitUsage       = 1
	exitCompilation = 2
)

func main() {
	inPath := flag.String("in", "", "input source file path (default: stdin)")
	outPath := flag.String("out", "", "output source file path (default: stdout)")
	target := flag.String("target", "c", "render target (only \"c\" is implemented)")
	doBuild := flag.Bool("build", false, "invoke the host C toolchain on the rendered output")
	cachePath := flag.String("cache", "", "path to a build-artifact cache database (requires -build)")
	verbose := flag.Bool("v", false, "print each pipeline stage")
	flag.Parse()

	if *target != "c" {
		fmt.Fprintf(os.Stderr, "unsupported target %q: only \"c\" is implemented\n", *target)
		os.Exit(exitUsage)
	}
	if *cachePath != "" && !*doBuild {
		fmt.Fprintln(os.Stderr, "-cache requires -build")
		os.Exit(exitUsage)
	}

	src, err := readInput(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input: %v\n", err)
		os.Exit(exitUsage)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Source:\n%s\n\n", src)
	}

	comp, err := component.Compile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
		os.Exit(exitCompilation)
	}

	fn, err := lower.Lower(comp.Graph, comp.Root, "f")
	if err != nil {
		fmt.Fprintf(os.Stderr, "lowering failed: %v\n", err)
		os.Exit(exitCompilation)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Lowered function %q with %d parameters\n\n", fn.Name, len(fn.Params))
	}

	rendered, err := c.New().Render(fn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rendering failed: %v\n", err)
		os.Exit(exitCompilation)
	}

	if err := writeOutput(*outPath, rendered); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(exitCompilation)
	}

	if !*doBuild {
		return
	}

	libPath, err := buildArtifact(src, rendered, *cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(exitCompilation)
	}
	fmt.Printf("built shared library -> %s\n", libPath)
}

func buildArtifact(src, rendered, cachePath string) (string, error) {
	var ch *cache.Cache
	var key string
	if cachePath != "" {
		var err error
		ch, err = cache.Open(cachePath)
		if err != nil {
			return "", errors.Wrap(err, "open cache")
		}
		defer ch.Close()

		key = cache.Key(src, "c")
		if path, ok, err := ch.Lookup(key); err != nil {
			return "", errors.Wrap(err, "cache lookup")
		} else if ok {
			return path, nil
		}
	}

	result, err := build.Build(rendered, build.Options{})
	if err != nil {
		return "", err
	}

	if ch != nil {
		if err := ch.Store(key, cache.Key(src, "c"), "c", result.SharedLibPath); err != nil {
			return "", errors.Wrap(err, "cache store")
		}
	}
	return result.SharedLibPath, nil
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return string(data), errors.Wrapf(err, "read %q", path)
}

func writeOutput(path, content string) error {
	if path == "" {
		_, err := fmt.Print(content)
		return errors.Wrap(err, "write stdout")
	}
	return errors.Wrapf(os.WriteFile(path, []byte(content), 0o644), "write %q", path)
}
