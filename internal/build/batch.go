// Package build drives the source→object pipeline (scan, parse,
// compile, write) for one or many source files, adapted from the
// teacher's internal/buildutil project-wide orchestration down to
// this language's single-file compilation unit: there is no
// module/import graph to resolve, so a "batch" is just an independent
// fan-out over the requested paths.
package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	mmerrors "memyself/internal/errors"
	"memyself/internal/compiler"
	"memyself/internal/lexer"
	"memyself/internal/object"
	"memyself/internal/parser"
)

// Result is one source file's compile outcome.
type Result struct {
	Source string
	Object string
	Err    error
}

// CompileFile runs the full scan/parse/compile pipeline for a single
// source file and writes the resulting object next to it (or at
// objectPath, if given).
func CompileFile(sourcePath, objectPath string) (string, error) {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", mmerrors.Wrap(mmerrors.RuntimeIO, mmerrors.Location{File: sourcePath}, err, "reading source")
	}

	tokens, err := lexer.NewScanner(sourcePath, string(src)).ScanTokens()
	if err != nil {
		return "", err
	}
	prog, err := parser.New(sourcePath, tokens).Parse()
	if err != nil {
		return "", err
	}
	obj, err := compiler.New(sourcePath).Compile(prog)
	if err != nil {
		return "", err
	}

	if objectPath == "" {
		objectPath = defaultObjectPath(sourcePath)
	}
	out, err := os.Create(objectPath)
	if err != nil {
		return "", mmerrors.Wrap(mmerrors.RuntimeIO, mmerrors.Location{File: sourcePath}, err, "creating object file")
	}
	defer out.Close()

	if err := object.Write(out, obj); err != nil {
		return "", mmerrors.Wrap(mmerrors.RuntimeIO, mmerrors.Location{File: sourcePath}, err, "writing object file")
	}
	return objectPath, nil
}

func defaultObjectPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + ".mmo"
}

// Batch compiles every source path concurrently, one goroutine per
// file, and returns one Result per input in input order. The first
// error encountered does not cancel the others — every file gets a
// chance to report its own outcome, matching `memyself compile`'s
// "compile everything, then report" behaviour.
func Batch(ctx context.Context, sourcePaths []string) []Result {
	results := make([]Result, len(sourcePaths))
	g, _ := errgroup.WithContext(ctx)

	for i, src := range sourcePaths {
		i, src := i, src
		g.Go(func() error {
			objPath, err := CompileFile(src, "")
			results[i] = Result{Source: src, Object: objPath, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
