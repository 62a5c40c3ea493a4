package recipe

import (
	"fmt"
	"strings"

	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/mold"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms recipe source before passing it to zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     so keywords need no globals and cannot clash with variables.
//
//  2. Kebab-case to underscore: default-mold -> default_mold.
//     zygomys reads a hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve :=.
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters; (- 10 5) stays.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Sexp types
// ---------------------------------------------------------------------------

// sexpMold is a defined preset, returned by defmold and mold.
type sexpMold struct {
	name string
	cfg  mold.Config
}

func (m *sexpMold) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mold %q)", m.name)
}
func (m *sexpMold) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword arguments
// ---------------------------------------------------------------------------

const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if _, seen := result.kw[name]; !seen {
			result.order = append(result.order, name)
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Trailing keyword: flag with nil.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a preprocessed keyword (:z) or a plain string.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool accepts true/false, and treats a bare trailing keyword as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

func toAxis(s zygo.Sexp) (mesh.Axis, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected axis keyword (:x, :y, :z): %w", err)
	}
	return mesh.ParseAxis(name)
}

// toMoldName accepts a preset reference or its name.
func toMoldName(s zygo.Sexp) (string, error) {
	if m, ok := s.(*sexpMold); ok {
		return m.name, nil
	}
	return toString(s)
}

// ---------------------------------------------------------------------------
// Config fields
// ---------------------------------------------------------------------------

type setter func(c *mold.Config, v zygo.Sexp) error

func number(dst func(*mold.Config) *float64) setter {
	return func(c *mold.Config, v zygo.Sexp) error {
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

// fields maps defmold keywords onto Config.
var fields = map[string]setter{
	"wall":      number(func(c *mold.Config) *float64 { return &c.WallThickness }),
	"bolt-hole": number(func(c *mold.Config) *float64 { return &c.BoltHoleDiameter }),
	"stroke":    number(func(c *mold.Config) *float64 { return &c.Stroke }),
	"plate":     number(func(c *mold.Config) *float64 { return &c.PlateThickness }),
	"fit":       number(func(c *mold.Config) *float64 { return &c.FitTolerance }),
	"floor":     number(func(c *mold.Config) *float64 { return &c.FloorThickness }),
	"scale":     number(func(c *mold.Config) *float64 { return &c.SizeMultiplier }),
	"alpha":     number(func(c *mold.Config) *float64 { return &c.AlphaValue }),
	"split": func(c *mold.Config, v zygo.Sexp) (err error) {
		c.SplitAxis, err = toAxis(v)
		return err
	},
	"orient": func(c *mold.Config, v zygo.Sexp) (err error) {
		c.Orientation, err = toAxis(v)
		return err
	},
	"alpha-profile": func(c *mold.Config, v zygo.Sexp) (err error) {
		c.UseAlphaProfile, err = toBool(v)
		return err
	},
	"strategy": func(c *mold.Config, v zygo.Sexp) (err error) {
		c.Strategy, err = toKeywordString(v)
		return err
	},
	"format": func(c *mold.Config, v zygo.Sexp) error {
		s, err := toKeywordString(v)
		c.OutputFormat = mold.OutputFormat(s)
		return err
	},
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the recipe builtins into env. Presets land in b.
// Source must be run through preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, b *Book) {

	// -----------------------------------------------------------------------
	// (defmold "name" :extends "base" :wall 5 :bolt-hole 6.2 :stroke 10
	//          :plate 5 :fit 0.1 :floor 0 :scale 1.5 :split :z :orient :z
	//          :alpha 10 :alpha-profile true :strategy "modular-box"
	//          :format :both)
	//
	// :compression-travel is accepted as an alias of :stroke; :stroke wins.
	// -----------------------------------------------------------------------
	env.AddFunction("defmold", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("defmold requires a name")
		}
		moldName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defmold: name: %w", err)
		}

		cfg := mold.DefaultConfig()
		if v, ok := pa.kw["extends"]; ok {
			base, err := toMoldName(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("defmold %s: extends: %w", moldName, err)
			}
			if cfg, ok = b.Presets[base]; !ok {
				return zygo.SexpNull, fmt.Errorf("defmold %s: extends: no mold named %q", moldName, base)
			}
		}
		if v, ok := pa.kw["compression-travel"]; ok {
			if _, set := pa.kw["stroke"]; !set {
				if cfg.Stroke, err = toFloat64(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("defmold %s: compression-travel: %w", moldName, err)
				}
			}
		}
		for _, k := range pa.order {
			if k == "extends" || k == "compression-travel" {
				continue
			}
			set, ok := fields[k]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("defmold %s: unknown option :%s", moldName, k)
			}
			if err := set(&cfg, pa.kw[k]); err != nil {
				return zygo.SexpNull, fmt.Errorf("defmold %s: %s: %w", moldName, k, err)
			}
		}
		if err := cfg.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("defmold %s: %w", moldName, err)
		}
		if err := b.add(moldName, cfg); err != nil {
			return zygo.SexpNull, fmt.Errorf("defmold: %w", err)
		}
		return &sexpMold{name: moldName, cfg: cfg}, nil
	})

	// -----------------------------------------------------------------------
	// (mold "name")
	// -----------------------------------------------------------------------
	env.AddFunction("mold", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("mold requires a name argument")
		}
		moldName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mold: name: %w", err)
		}
		cfg, ok := b.Presets[moldName]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("mold: no mold named %q", moldName)
		}
		return &sexpMold{name: moldName, cfg: cfg}, nil
	})

	// -----------------------------------------------------------------------
	// (default-mold "name") or (default-mold (mold "name"))
	// -----------------------------------------------------------------------
	env.AddFunction("default_mold", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("default-mold requires one argument")
		}
		moldName, err := toMoldName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("default-mold: %w", err)
		}
		cfg, ok := b.Presets[moldName]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("default-mold: no mold named %q", moldName)
		}
		b.Default = moldName
		return &sexpMold{name: moldName, cfg: cfg}, nil
	})
}
