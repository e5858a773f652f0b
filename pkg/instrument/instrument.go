// Package instrument rewrites Go source so that it runs on the uthread
// runtime: loop bodies (and optionally function bodies) get a checkpoint
// where the thread can be preempted, go statements spawn user-level
// threads, and main can initialize the runtime.
package instrument

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// Config holds configuration for the instrumentation
type Config struct {
	// ImportRewrites maps import paths to replacement paths
	ImportRewrites map[string]string

	// BaseRuntimeAddress is the base package path for runtime functions
	BaseRuntimeAddress string

	// RuntimeAlias is the import alias for the runtime package
	// If empty, a mangled name will be generated from BaseRuntimeAddress
	RuntimeAlias string

	// CheckpointFunc is the name of the preemption checkpoint function
	CheckpointFunc string

	// SpawnFunc is the name of the thread spawn function
	SpawnFunc string

	// InitFunc is the name of the runtime init function
	InitFunc string

	// InitQuantum, if positive, makes main.main initialize the runtime
	// with this quantum in microseconds
	InitQuantum int

	// FuncEntry adds a checkpoint at the top of every function body
	FuncEntry bool
}

// DefaultConfig returns a Config with default settings
func DefaultConfig() *Config {
	baseAddr := "github.com/amirkhaki/uthreads/pkg/uthread"
	return &Config{
		BaseRuntimeAddress: baseAddr,
		RuntimeAlias:       "", // Will be auto-generated
		CheckpointFunc:     "Checkpoint",
		SpawnFunc:          "MustSpawn",
		InitFunc:           "MustInit",
		ImportRewrites:     map[string]string{},
	}
}

// Instrumenter handles the instrumentation of Go source code
type Instrumenter struct {
	config          *Config
	instrumented    bool // tracks if any instrumentation was added to current file
	anyInstrumented bool // tracks if any file had instrumentation
}

// NewInstrumenter creates a new Instrumenter with the given config
func NewInstrumenter(config *Config) *Instrumenter {
	if config == nil {
		config = DefaultConfig()
	}

	// Generate runtime alias if not provided
	if config.RuntimeAlias == "" {
		config.RuntimeAlias = generateRuntimeAlias(config.BaseRuntimeAddress)
	}

	return &Instrumenter{
		config: config,
	}
}

// generateRuntimeAlias creates a deterministic mangled alias from the import path
// This ensures no conflicts with user imports
func generateRuntimeAlias(importPath string) string {
	hash := sha256.Sum256([]byte(importPath))
	return "__uthread_" + hex.EncodeToString(hash[:8])
}

// WasInstrumented returns true if any instrumentation was added during the last operation
func (instr *Instrumenter) WasInstrumented() bool {
	return instr.anyInstrumented
}

// InstrumentFile instruments a single Go source file
func (instr *Instrumenter) InstrumentFile(fset *token.FileSet, filename string, src interface{}) (*ast.File, error) {
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	return instr.InstrumentAST(fset, f)
}

// InstrumentFiles instruments multiple Go source files
func (instr *Instrumenter) InstrumentFiles(fset *token.FileSet, filenames []string) ([]*ast.File, error) {
	files := make([]*ast.File, len(filenames))
	for i, filename := range filenames {
		f, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
		}
		files[i] = f
	}

	return instr.InstrumentASTs(fset, files)
}

// InstrumentASTs instruments multiple already-parsed ASTs
func (instr *Instrumenter) InstrumentASTs(fset *token.FileSet, files []*ast.File) ([]*ast.File, error) {
	instr.anyInstrumented = false
	for _, f := range files {
		instr.instrumentSingleAST(fset, f)
	}
	return files, nil
}

// InstrumentAST instruments an already-parsed AST
func (instr *Instrumenter) InstrumentAST(fset *token.FileSet, f *ast.File) (*ast.File, error) {
	instr.anyInstrumented = false
	instr.instrumentSingleAST(fset, f)
	return f, nil
}

// instrumentSingleAST performs the actual instrumentation on a single file
func (instr *Instrumenter) instrumentSingleAST(fset *token.FileSet, f *ast.File) {
	for k, v := range instr.config.ImportRewrites {
		astutil.RewriteImport(fset, f, k, v)
	}

	instr.instrumented = false

	// First pass: checkpoints in loop and function bodies
	astutil.Apply(f, nil, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.ForStmt:
			instr.prependCheckpoint(n.Body)
		case *ast.RangeStmt:
			instr.prependCheckpoint(n.Body)
		case *ast.FuncDecl:
			if instr.config.FuncEntry {
				instr.prependCheckpoint(n.Body)
			}
		case *ast.FuncLit:
			if instr.config.FuncEntry {
				instr.prependCheckpoint(n.Body)
			}
		}
		return true
	})

	// Second pass: go statements, after the generated closures can no
	// longer be picked up by the first pass
	pkgs := importNames(f)
	astutil.Apply(f, nil, func(c *astutil.Cursor) bool {
		if stmt, ok := c.Node().(*ast.GoStmt); ok {
			instr.instrumentGoStmt(c, stmt, pkgs)
		}
		return true
	})

	instr.instrumentMainFunction(f)

	// Only add the import if instrumentation was actually added
	if instr.instrumented {
		instr.anyInstrumented = true
		astutil.AddNamedImport(fset, f, instr.config.RuntimeAlias, instr.config.BaseRuntimeAddress)
	}
}

func (instr *Instrumenter) runtimeCall(name string, args ...ast.Expr) *ast.ExprStmt {
	instr.instrumented = true
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   &ast.Ident{Name: instr.config.RuntimeAlias},
				Sel: &ast.Ident{Name: name},
			},
			Args: args,
		},
	}
}

func (instr *Instrumenter) prependCheckpoint(body *ast.BlockStmt) {
	if body == nil {
		return
	}
	body.List = append([]ast.Stmt{instr.runtimeCall(instr.config.CheckpointFunc)}, body.List...)
}

func (instr *Instrumenter) instrumentGoStmt(c *astutil.Cursor, stmt *ast.GoStmt, pkgs map[string]bool) {
	// Transform: go f(expr1, expr2, ...)
	// Into: {
	//   fn := f      (unless f needs no evaluation)
	//   p0 := expr1
	//   p1 := expr2
	//   ...
	//   uthread.MustSpawn(func() {
	//     fn(p0, p1, ...)
	//   })
	// }
	callExpr := stmt.Call

	var blockStmts []ast.Stmt
	var paramIdents []ast.Expr

	// The function value and receiver are evaluated first, as a go
	// statement would
	fun := callExpr.Fun
	if needsEvaluation(fun, pkgs) {
		fnName := &ast.Ident{Name: "__uthread_fn"}
		blockStmts = append(blockStmts, &ast.AssignStmt{
			Lhs: []ast.Expr{fnName},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{fun},
		})
		fun = fnName
	}

	// Then the arguments
	for i, arg := range callExpr.Args {
		paramName := &ast.Ident{Name: fmt.Sprintf("__uthread_p%d", i)}
		blockStmts = append(blockStmts, &ast.AssignStmt{
			Lhs: []ast.Expr{paramName},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{arg},
		})
		paramIdents = append(paramIdents, paramName)
	}

	wrappedCall := &ast.CallExpr{
		Fun:      fun,
		Args:     paramIdents,
		Ellipsis: callExpr.Ellipsis,
	}
	funcLit := &ast.FuncLit{
		Type: &ast.FuncType{Params: &ast.FieldList{}},
		Body: &ast.BlockStmt{
			List: []ast.Stmt{&ast.ExprStmt{X: wrappedCall}},
		},
	}
	blockStmts = append(blockStmts, instr.runtimeCall(instr.config.SpawnFunc, funcLit))

	c.Replace(&ast.BlockStmt{List: blockStmts})
}

// needsEvaluation reports whether the function expression of a go
// statement must be evaluated before the thread is spawned. Identifiers,
// function literals and package-qualified names are called in place,
// which also keeps builtins and generic functions valid.
func needsEvaluation(fun ast.Expr, pkgs map[string]bool) bool {
	switch fn := fun.(type) {
	case *ast.Ident, *ast.FuncLit:
		return false
	case *ast.SelectorExpr:
		if x, ok := fn.X.(*ast.Ident); ok && pkgs[x.Name] {
			return false
		}
	}
	return true
}

// importNames returns the names under which the file's imports are
// visible. Unnamed imports use the last path element, without a
// major-version suffix.
func importNames(f *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, imp := range f.Imports {
		if imp.Name != nil {
			names[imp.Name.Name] = true
			continue
		}
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		names[packageName(p)] = true
	}
	return names
}

func packageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	if i := strings.Index(name, ".v"); i > 0 && isMajorVersion(name[i+1:]) {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	return strings.ReplaceAll(name, "-", "_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// instrumentMainFunction makes main() in package main initialize the runtime
func (instr *Instrumenter) instrumentMainFunction(f *ast.File) {
	if f.Name.Name != "main" || instr.config.InitQuantum <= 0 {
		return
	}

	for _, decl := range f.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok || funcDecl.Name.Name != "main" || funcDecl.Recv != nil || funcDecl.Body == nil {
			continue
		}
		quantum := &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(instr.config.InitQuantum)}
		initCall := instr.runtimeCall(instr.config.InitFunc, quantum)
		funcDecl.Body.List = append([]ast.Stmt{initCall}, funcDecl.Body.List...)
		break
	}
}
