package trials

import (
	"errors"
	"testing"
)

func mustSig(t *testing.T, name string, params ...Param) *Signature {
	t.Helper()
	sig, err := NewSignature(name, params...)
	if err != nil {
		t.Fatalf("signature: %v", err)
	}
	return sig
}

func TestNewSignatureRejectsDuplicates(t *testing.T) {
	_, err := NewSignature("f", Arg("x"), Arg("x"))
	if err == nil {
		t.Fatal("expected duplicate parameter error")
	}
}

func TestConstructArgumentsPrecedence(t *testing.T) {
	sig := mustSig(t, "f", Arg("x"), ArgDefault("y", int64(5)))
	lookup := func(name string) (any, bool) {
		if name == "x" {
			return int64(1), true
		}
		if name == "y" {
			return int64(2), true
		}
		return nil, false
	}

	// namespace fills everything
	args, err := sig.constructArguments(nil, nil, lookup, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["x"] != int64(1) || args["y"] != int64(2) {
		t.Fatalf("namespace should fill free parameters, got %v", args)
	}

	// explicit beats namespace
	args, err = sig.constructArguments([]any{int64(10)}, nil, lookup, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["x"] != int64(10) {
		t.Fatalf("explicit argument must win, got %v", args["x"])
	}

	// default only when namespace is silent
	noY := func(name string) (any, bool) {
		if name == "x" {
			return int64(1), true
		}
		return nil, false
	}
	args, err = sig.constructArguments(nil, nil, noY, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["y"] != int64(5) {
		t.Fatalf("default should fill the gap, got %v", args["y"])
	}
}

func TestConstructArgumentsMissing(t *testing.T) {
	sig := mustSig(t, "f", Arg("x"), Arg("y"))
	_, err := sig.constructArguments(nil, nil, nil, nil)
	var missing *MissingArgumentError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArgumentError, got %v", err)
	}
	if len(missing.Missing) != 2 {
		t.Fatalf("both unfilled parameters should be named, got %v", missing.Missing)
	}
}

func TestConstructArgumentsTooMany(t *testing.T) {
	sig := mustSig(t, "f", Arg("x"))
	_, err := sig.constructArguments([]any{1, 2}, nil, nil, nil)
	var tooMany *TooManyArgumentsError
	if !errors.As(err, &tooMany) {
		t.Fatalf("expected TooManyArgumentsError, got %v", err)
	}
	if tooMany.Expected != 1 || tooMany.Got != 2 {
		t.Fatalf("expected 1/2, got %d/%d", tooMany.Expected, tooMany.Got)
	}
}

func TestConstructArgumentsUnexpectedKeyword(t *testing.T) {
	sig := mustSig(t, "f", Arg("x"))
	_, err := sig.constructArguments(nil, map[string]any{"z": 1}, nil, nil)
	var unexpected *UnexpectedKeywordError
	if !errors.As(err, &unexpected) {
		t.Fatalf("expected UnexpectedKeywordError, got %v", err)
	}
	if unexpected.Keyword != "z" {
		t.Fatalf("expected keyword z, got %q", unexpected.Keyword)
	}
}

func TestConstructArgumentsDuplicate(t *testing.T) {
	sig := mustSig(t, "f", Arg("x"))
	_, err := sig.constructArguments([]any{1}, map[string]any{"x": 2}, nil, nil)
	var duplicate *DuplicateArgumentError
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected DuplicateArgumentError, got %v", err)
	}
}

func TestConstructArgumentsSpecials(t *testing.T) {
	sig := mustSig(t, "f", Arg("x"), Arg("_seed"))
	args, err := sig.constructArguments([]any{int64(1)}, nil, nil, map[string]any{
		ParamSeed: int64(99),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["x"] != int64(1) {
		t.Fatalf("positional arguments skip specials, got %v", args["x"])
	}
	if args["_seed"] != int64(99) {
		t.Fatalf("specials are framework-injected, got %v", args["_seed"])
	}

	// callers can never pass a special by name
	_, err = sig.constructArguments(nil, map[string]any{"_seed": 1}, nil, nil)
	var unexpected *UnexpectedKeywordError
	if !errors.As(err, &unexpected) {
		t.Fatalf("expected UnexpectedKeywordError for special, got %v", err)
	}
}

func TestSignatureUsesRandomness(t *testing.T) {
	with := mustSig(t, "f", Arg("_rnd"))
	without := mustSig(t, "g", Arg("x"))
	if !with.UsesRandomness() {
		t.Fatal("_rnd implies randomness")
	}
	if without.UsesRandomness() {
		t.Fatal("plain parameters do not imply randomness")
	}
}
