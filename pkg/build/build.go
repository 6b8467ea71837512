// Package build invokes the host C toolchain on rendered C source to
// produce a loadable shared library, the step between pkg/render/c and
// pkg/ffi in spec.md §6's pipeline.
//
// No original_source/ or pack example builds a shared library directly;
// the os/exec invocation shape is grounded on the teacher's own
// main.go/cmd/ccompiler/main.go (read input, shell a subprocess, wrap a
// failing exec.Command with the command line that failed).
package build

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Options configures a Build invocation.
type Options struct {
	// Dir is the directory temporary source/object files are written
	// to. Defaults to os.TempDir() when empty.
	Dir string
	// Compiler is the C compiler binary to invoke. Defaults to "cc".
	Compiler string
}

// Result is the outcome of a successful Build: the path to the compiled
// shared library and the intermediate source file left alongside it for
// inspection.
type Result struct {
	SharedLibPath string
	SourcePath    string
}

// Build writes src to a uuid-named temporary .c file and compiles it into
// a shared library with the host C toolchain (spec.md §6: "the builder
// stage invokes a C toolchain and emits a shared-library artifact").
func Build(src string, opts Options) (*Result, error) {
	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	compiler := opts.Compiler
	if compiler == "" {
		compiler = "cc"
	}

	base := "indexc-" + uuid.NewString()
	sourcePath := filepath.Join(dir, base+".c")
	libPath := filepath.Join(dir, base+".so")

	if err := os.WriteFile(sourcePath, []byte(src), 0o644); err != nil {
		return nil, errors.Wrapf(err, "build: write source %q", sourcePath)
	}

	cmd := exec.Command(compiler, "-shared", "-fPIC", "-O2", "-o", libPath, sourcePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrapf(err, "build: %s failed: %s", cmd.String(), out)
	}

	return &Result{SharedLibPath: libPath, SourcePath: sourcePath}, nil
}
