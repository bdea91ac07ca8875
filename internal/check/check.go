// Package check validates annotation files and Setup envelopes before they
// are handed to the engine. The engine itself reports most of these
// problems only as a crash or an empty result.
package check

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"arwen/internal/ipc"
	"arwen/internal/logging"
	"arwen/internal/parser"
	"arwen/internal/source"
	"arwen/internal/spec"
)

// ViolationType categorizes violations.
type ViolationType int

const (
	ViolationUndeclaredPredicate ViolationType = iota
	ViolationUnknownSymbol
	ViolationMissingField
	ViolationNoPredicates
	ViolationDuplicatePredicate
	ViolationClientMissing
	ViolationSourceSyntax
	ViolationParse
)

func (v ViolationType) String() string {
	switch v {
	case ViolationUndeclaredPredicate:
		return "undeclared_predicate"
	case ViolationUnknownSymbol:
		return "unknown_symbol"
	case ViolationMissingField:
		return "missing_field"
	case ViolationNoPredicates:
		return "no_predicates"
	case ViolationDuplicatePredicate:
		return "duplicate_predicate"
	case ViolationClientMissing:
		return "client_missing"
	case ViolationSourceSyntax:
		return "source_syntax"
	case ViolationParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Violation describes a single problem.
type Violation struct {
	Type        ViolationType
	Location    string // "pre", "post", a Setup field, or file:line
	Description string
	// Warning violations are reported but do not fail the report.
	Warning bool
}

func (v Violation) String() string {
	sev := "error"
	if v.Warning {
		sev = "warning"
	}
	return fmt.Sprintf("%s: %s: %s (%s)", sev, v.Location, v.Description, v.Type)
}

// Report collects the violations found by one or more checks. A *Report
// with at least one non-warning violation is an error.
type Report struct {
	Violations []Violation
}

func (r *Report) add(t ViolationType, loc, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{Type: t, Location: loc, Description: fmt.Sprintf(format, args...)})
}

func (r *Report) warn(t ViolationType, loc, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{Type: t, Location: loc, Description: fmt.Sprintf(format, args...), Warning: true})
}

// Merge appends the violations of o.
func (r *Report) Merge(o *Report) *Report {
	if o != nil {
		r.Violations = append(r.Violations, o.Violations...)
	}
	return r
}

// OK reports whether r holds no errors. Warnings do not count.
func (r *Report) OK() bool {
	for _, v := range r.Violations {
		if !v.Warning {
			return false
		}
	}
	return true
}

// Err returns r as an error, or nil when r is OK.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return r
}

func (r *Report) Error() string {
	lines := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		if !v.Warning {
			lines = append(lines, v.Location+": "+v.Description)
		}
	}
	if len(lines) == 1 {
		return "check: " + lines[0]
	}
	return fmt.Sprintf("check: %d problems:\n\t%s", len(lines), strings.Join(lines, "\n\t"))
}

// Has reports whether r contains a violation of type t.
func (r *Report) Has(t ViolationType) bool {
	for _, v := range r.Violations {
		if v.Type == t {
			return true
		}
	}
	return false
}

// Predicates reports predicate symbols used in the pre/post bodies of f that
// the file does not declare in its preds list. Comparison operators are
// always allowed. Zero-argument applications naming a bound variable are
// boolean variables, not predicates.
func Predicates(f *spec.AssertionFile) *Report {
	r := &Report{}
	if f.Pre != nil {
		predicatesIn(r, "pre", *f.Pre, f.Preds)
	}
	predicatesIn(r, "post", f.Post, f.Preds)
	logging.CheckDebug("predicate check: %d violations", len(r.Violations))
	return r
}

func predicatesIn(r *Report, loc string, s spec.Spec, declared spec.Predicates) {
	env := s.Env()
	seen := make(map[string]bool)
	var visit func(e spec.SimpleExpr)
	visit = func(e spec.SimpleExpr) {
		switch e := e.(type) {
		case spec.Op:
			for _, a := range e.Args {
				visit(a)
			}
			if spec.IsComparison(e.Name) || seen[e.Name] {
				return
			}
			if _, bound := env[e.Name]; bound && len(e.Args) == 0 {
				return
			}
			seen[e.Name] = true
			k, known := spec.PredicateBySymbol(e.Name)
			switch {
			case !known:
				r.add(ViolationUnknownSymbol, loc, "%q is not a known predicate", e.Name)
			case !declared.Contains(k):
				r.add(ViolationUndeclaredPredicate, loc, "predicate %q used but not declared in preds", e.Name)
			}
		case spec.TupleExpr:
			for _, el := range e.Elems {
				visit(el)
			}
		}
	}
	for _, e := range spec.Atoms(s.Formula.Body) {
		visit(e)
	}
}

// Setup reports missing fields of s. Paths are not checked for existence
// because they are resolved by the engine relative to its own directory.
func Setup(s ipc.Setup) *Report {
	r := &Report{}
	for _, f := range []struct{ name, value string }{
		{"sourcefile", s.SourceFile},
		{"assertionfile", s.AssertionFile},
		{"outputdir", s.OutputDir},
		{"client_name", s.ClientName},
	} {
		if strings.TrimSpace(f.value) == "" {
			r.add(ViolationMissingField, f.name, "must not be empty")
		}
	}
	if len(s.Predicates) == 0 {
		r.add(ViolationNoPredicates, "predicates", "at least one predicate is required")
	}
	dups := make(map[spec.KnownPredicate]int)
	for _, p := range s.Predicates {
		dups[p]++
	}
	var names []string
	for p, n := range dups {
		if n > 1 {
			names = append(names, p.Symbol())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		r.warn(ViolationDuplicatePredicate, "predicates", "%q listed more than once", n)
	}
	return r
}

// ClientDefined reports whether client is a top-level value binding of src.
func ClientDefined(src *source.File, client string) *Report {
	r := &Report{}
	if src.Partial {
		r.warn(ViolationSourceSyntax, src.Path, "source has syntax errors")
	}
	if _, ok := src.Lookup(client); !ok {
		r.add(ViolationClientMissing, src.Path, "no top-level binding named %q", client)
	}
	return r
}

// All runs every check that applies to s: the Setup fields, the annotation
// file's predicate vocabulary and the client binding in the source file.
// Files that cannot be read or parsed are reported as violations.
func All(ctx context.Context, reader *source.Reader, s ipc.Setup) *Report {
	timer := logging.StartTimer(logging.CategoryCheck, "pre-send check")
	defer timer.Stop()

	r := Setup(s)
	if s.AssertionFile != "" {
		f, err := parser.ParseFileAt(s.AssertionFile)
		if err != nil {
			r.add(ViolationParse, s.AssertionFile, "%v", err)
		} else {
			r.Merge(Predicates(f))
			for _, p := range f.Preds {
				if len(s.Predicates) > 0 && !s.Predicates.Contains(p) {
					r.warn(ViolationUndeclaredPredicate, "predicates", "%q declared in %s but not sent", p.Symbol(), s.AssertionFile)
				}
			}
		}
	}
	if s.SourceFile != "" && s.ClientName != "" {
		src, err := reader.ReadFile(ctx, s.SourceFile)
		if err != nil {
			r.add(ViolationParse, s.SourceFile, "%v", err)
		} else {
			r.Merge(ClientDefined(src, s.ClientName))
		}
	}
	if !r.OK() {
		logging.Get(logging.CategoryCheck).Warn("setup for %s failed checks: %d violations", s.ClientName, len(r.Violations))
	}
	return r
}
