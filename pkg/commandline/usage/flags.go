package usage

import (
	"flag"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
)

// Flag is a command line flag bound to a field of a struct.
type Flag struct {
	Name    string
	Short   string
	Help    string
	MetaVar string

	// pointer to the field, or the field itself if it is a flag.Value
	target any
}

// Register defines f (and its short alias) in set.
func (f Flag) Register(set *flag.FlagSet) {
	names := []string{f.Name}
	if f.Short != "" {
		names = append(names, f.Short)
	}

	for i, name := range names {
		help := f.Help
		if 0 < i {
			help = "alias for --" + f.Name
		}
		switch p := f.target.(type) {
		case *bool:
			set.BoolVar(p, name, *p, help)
		case *string:
			set.StringVar(p, name, *p, help)
		case *int:
			set.IntVar(p, name, *p, help)
		case *uint:
			set.UintVar(p, name, *p, help)
		case *float64:
			set.Float64Var(p, name, *p, help)
		case *time.Duration:
			set.DurationVar(p, name, *p, help)
		case flag.Value:
			set.Var(p, name, help)
		}
	}
}

func (f Flag) String() string {
	s := "--" + f.Name
	if f.Short != "" {
		s += "|-" + f.Short
	}
	if _, ok := f.target.(*bool); ok {
		return "[" + s + "]"
	}

	meta := f.MetaVar
	if meta == "" {
		switch p := f.target.(type) {
		case *string:
			meta = *p
		case *time.Duration:
			meta = fmt.Sprintf("%q", p.String())
		case flag.Value:
			meta = p.String()
		default:
			meta = fmt.Sprint(reflect.ValueOf(p).Elem().Interface())
		}
	}
	return s + "=" + meta
}

// Flags is a series of flags in the order of the struct fields.
type Flags []Flag

// Register defines all flags in set.
func (fs Flags) Register(set *flag.FlagSet) {
	for _, f := range fs {
		f.Register(set)
	}
}

func (fs Flags) String() string {
	strs := make([]string, 0, len(fs))
	for _, f := range fs {
		strs = append(strs, f.String())
	}
	return strings.Join(strs, " ")
}

// Bind reads "flag" tags of the struct pointed by v, and returns flags writing into its fields.
//
// The tag looks like `flag:"NAME,short=S,metavar=META,help=HELP"`.
// When NAME is empty, the field name in kebab-case is used.
// "help" should be the last attribute: the rest of the tag is the help message,
// so it can contain commas.
//
// Supported field types are bool, string, int, uint, float64, time.Duration
// and the types implementing flag.Value (by themselves or by their pointer).
//
// Bind panics when v does not point a struct or a tagged field has an unsupported type.
func Bind[T any](v *T) Flags {
	rv := reflect.ValueOf(v).Elem()
	if rv.Kind() != reflect.Struct {
		panic(fmt.Sprintf("flags should be a struct, not %s", rv.Type()))
	}

	rt := rv.Type()
	flags := Flags{}
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag, ok := field.Tag.Lookup("flag")
		if !ok || !field.IsExported() {
			continue
		}

		f := parseTag(tag)
		if f.Name == "" {
			f.Name = kebab(field.Name)
		}

		fv := rv.Field(i)
		if val, ok := fv.Interface().(flag.Value); ok {
			f.target = val
		} else {
			f.target = fv.Addr().Interface()
		}
		switch f.target.(type) {
		case *bool, *string, *int, *uint, *float64, *time.Duration, flag.Value:
		default:
			panic(fmt.Sprintf("flag %s: unsupported type %s", f.Name, field.Type))
		}

		flags = append(flags, f)
	}
	return flags
}

func parseTag(tag string) Flag {
	name, attrs, _ := strings.Cut(tag, ",")
	f := Flag{Name: name}

	for attrs != "" {
		var attr string
		if strings.HasPrefix(attrs, "help=") {
			attr, attrs = attrs, ""
		} else {
			attr, attrs, _ = strings.Cut(attrs, ",")
		}

		key, value, _ := strings.Cut(attr, "=")
		switch key {
		case "short":
			f.Short = value
		case "metavar":
			f.MetaVar = value
		case "help":
			f.Help = value
		}
	}
	return f
}

func kebab(name string) string {
	b := new(strings.Builder)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if 0 < i {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
