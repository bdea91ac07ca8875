package spec

import (
	"fmt"
	"strconv"
	"strings"
)

// KnownPredicate is a predicate symbol the engine understands over ADT
// values. The set mirrors the engine's known_preds table.
type KnownPredicate int

const (
	Length KnownPredicate = iota
	Sorted
	Member
	Head
	Order
	Once
	Left
	Right
	Para
	Ance
	Root
)

type predicateInfo struct {
	tag    string // wire variant name
	symbol string // name used in annotation files
}

var knownPredicates = [...]predicateInfo{
	Length: {"length", "len"},
	Sorted: {"sorted", "sorted"},
	Member: {"member", "mem"},
	Head:   {"head", "hd"},
	Order:  {"order", "ord"},
	Once:   {"once", "once"},
	Left:   {"left", "left"},
	Right:  {"right", "right"},
	Para:   {"para", "para"},
	Ance:   {"ance", "ance"},
	Root:   {"root", "root"},
}

// AllPredicates lists every known predicate in declaration order.
func AllPredicates() []KnownPredicate {
	out := make([]KnownPredicate, len(knownPredicates))
	for i := range knownPredicates {
		out[i] = KnownPredicate(i)
	}
	return out
}

func (k KnownPredicate) valid() bool {
	return k >= 0 && int(k) < len(knownPredicates)
}

// Tag is the wire name of k, e.g. "member".
func (k KnownPredicate) Tag() string {
	if !k.valid() {
		return "KnownPredicate(" + strconv.Itoa(int(k)) + ")"
	}
	return knownPredicates[k].tag
}

// Symbol is the name k has in annotation files, e.g. "mem".
func (k KnownPredicate) Symbol() string {
	if !k.valid() {
		return "KnownPredicate(" + strconv.Itoa(int(k)) + ")"
	}
	return knownPredicates[k].symbol
}

func (k KnownPredicate) String() string { return k.Symbol() }

// PredicateBySymbol looks up a predicate by its annotation-file name.
func PredicateBySymbol(sym string) (KnownPredicate, bool) {
	for i, info := range knownPredicates {
		if info.symbol == sym {
			return KnownPredicate(i), true
		}
	}
	return 0, false
}

// PredicateByTag looks up a predicate by its wire name.
func PredicateByTag(tag string) (KnownPredicate, bool) {
	for i, info := range knownPredicates {
		if info.tag == tag {
			return KnownPredicate(i), true
		}
	}
	return 0, false
}

// ParsePredicate accepts either the wire name or the symbol.
func ParsePredicate(s string) (KnownPredicate, error) {
	if k, ok := PredicateByTag(s); ok {
		return k, nil
	}
	if k, ok := PredicateBySymbol(s); ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown predicate %q", s)
}

// Predicates is an ordered list of known predicates. The order becomes
// positional engine configuration; duplicates are not rejected.
type Predicates []KnownPredicate

// String renders the `let preds` declaration of an annotation file.
func (ps Predicates) String() string {
	quoted := make([]string, len(ps))
	for i, p := range ps {
		quoted[i] = strconv.Quote(p.Symbol())
	}
	return "let preds = [| " + strings.Join(quoted, "; ") + " |]"
}

// Contains reports whether k is in ps.
func (ps Predicates) Contains(k KnownPredicate) bool {
	for _, p := range ps {
		if p == k {
			return true
		}
	}
	return false
}

// Symbols returns the annotation-file names of ps in order.
func (ps Predicates) Symbols() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Symbol()
	}
	return out
}
