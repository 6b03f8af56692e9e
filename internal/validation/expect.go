package validation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// registerExpect installs a chai style expect() covering the assertions
// scripts commonly need: equal, eql, deep.equal, exist, include/contain,
// a/an, undefined, below, above, at.least, at.most, within, have.property
// and have.length. Every chain has a not variant.
func registerExpect(vm *goja.Runtime) {
	vm.Set("expect", func(call goja.FunctionCall) goja.Value {
		return newAssertionChain(vm, call.Argument(0))
	})
}

type assertion struct {
	vm  *goja.Runtime
	v   goja.Value
	neg bool
}

func (a assertion) check(ok bool, format string, args ...any) goja.Value {
	if a.neg {
		ok = !ok
		format = strings.Replace(format, "expected ", "expected not ", 1)
	}
	if !ok {
		panic(a.vm.NewGoError(fmt.Errorf(format, args...)))
	}
	return goja.Undefined()
}

func (a assertion) number(call goja.FunctionCall, i int) float64 {
	if len(call.Arguments) <= i {
		panic(a.vm.NewGoError(fmt.Errorf("missing numeric argument")))
	}
	return call.Arguments[i].ToFloat()
}

func (a assertion) equal(call goja.FunctionCall) goja.Value {
	other := call.Argument(0)
	return a.check(a.v.StrictEquals(other), "expected %v to equal %v", a.v, other)
}

func (a assertion) deepEqual(call goja.FunctionCall) goja.Value {
	other := call.Argument(0)
	return a.check(reflect.DeepEqual(a.v.Export(), other.Export()), "expected %v to deep equal %v", a.v, other)
}

func (a assertion) exist(goja.FunctionCall) goja.Value {
	return a.check(!isNullish(a.v), "expected value to exist")
}

func (a assertion) undefined(goja.FunctionCall) goja.Value {
	return a.check(isNullish(a.v), "expected %v to be undefined", a.v)
}

func (a assertion) include(call goja.FunctionCall) goja.Value {
	target := call.Argument(0)
	if s, ok := a.v.(goja.String); ok {
		return a.check(strings.Contains(s.String(), target.String()), "expected %q to include %q", s.String(), target.String())
	}
	if obj, ok := a.v.(*goja.Object); ok && obj.ClassName() == "Array" {
		found := false
		n := obj.Get("length").ToInteger()
		for i := int64(0); i < n && !found; i++ {
			found = obj.Get(strconv.FormatInt(i, 10)).StrictEquals(target)
		}
		return a.check(found, "expected array to include %v", target)
	}
	panic(a.vm.NewGoError(fmt.Errorf("include not supported for value %v", a.v)))
}

func (a assertion) typeOf(call goja.FunctionCall) goja.Value {
	want := strings.ToLower(call.Argument(0).String())
	var ok bool
	switch want {
	case "string":
		_, ok = a.v.(goja.String)
	case "number":
		ok = !isNullish(a.v) && !math.IsNaN(a.v.ToFloat())
	case "boolean":
		_, ok = a.v.Export().(bool)
	case "object":
		_, ok = a.v.(*goja.Object)
	case "array":
		obj, isObj := a.v.(*goja.Object)
		ok = isObj && obj.ClassName() == "Array"
	case "null":
		ok = goja.IsNull(a.v)
	}
	return a.check(ok, "expected %v to be a %s", a.v, want)
}

func (a assertion) compare(op string, cmp func(got, want float64) bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		want := a.number(call, 0)
		got := a.v.ToFloat()
		return a.check(cmp(got, want), "expected %v to be %s %v", got, op, want)
	}
}

func (a assertion) within(call goja.FunctionCall) goja.Value {
	lo, hi := a.number(call, 0), a.number(call, 1)
	got := a.v.ToFloat()
	return a.check(got >= lo && got <= hi, "expected %v to be within %v..%v", got, lo, hi)
}

func (a assertion) property(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	prop := goja.Undefined()
	if obj, ok := a.v.(*goja.Object); ok {
		prop = obj.Get(name)
	}
	if prop == nil {
		prop = goja.Undefined()
	}
	a.check(!isNullish(prop), "expected property %s on %v", name, a.v)
	if len(call.Arguments) > 1 {
		return a.check(prop.StrictEquals(call.Arguments[1]), "expected property %s to equal %v", name, call.Arguments[1])
	}
	return prop
}

// lengthChain asserts on the length of strings, arrays and objects exposing
// a length property.
func (a assertion) lengthChain() *goja.Object {
	n := float64(lengthOf(a.v))
	l := assertion{vm: a.vm, v: a.vm.ToValue(n), neg: a.neg}
	obj := a.vm.NewObject()
	_ = obj.Set("equal", l.compare("of length", func(got, want float64) bool { return got == want }))
	_ = obj.Set("above", l.compare("of length above", func(got, want float64) bool { return got > want }))
	_ = obj.Set("greaterThan", obj.Get("above"))
	_ = obj.Set("below", l.compare("of length below", func(got, want float64) bool { return got < want }))
	_ = obj.Set("least", l.compare("of length at least", func(got, want float64) bool { return got >= want }))
	_ = obj.Set("most", l.compare("of length at most", func(got, want float64) bool { return got <= want }))
	return obj
}

func newAssertionChain(vm *goja.Runtime, v goja.Value) *goja.Object {
	pos := buildChain(assertion{vm: vm, v: v})
	neg := buildChain(assertion{vm: vm, v: v, neg: true})
	for _, key := range []string{"", "to", "be", "deep", "have", "at"} {
		obj := pos
		if key != "" {
			obj = pos.Get(key).(*goja.Object)
		}
		_ = obj.Set("not", neg)
	}
	return pos
}

func buildChain(a assertion) *goja.Object {
	vm := a.vm
	base, to, be, deep, have, at := vm.NewObject(), vm.NewObject(), vm.NewObject(), vm.NewObject(), vm.NewObject(), vm.NewObject()

	for _, o := range []*goja.Object{base, to} {
		_ = o.Set("to", to)
		_ = o.Set("be", be)
		_ = o.Set("deep", deep)
		_ = o.Set("have", have)
		_ = o.Set("equal", a.equal)
		_ = o.Set("eql", a.deepEqual)
		_ = o.Set("exist", a.exist)
		_ = o.Set("include", a.include)
		_ = o.Set("contain", a.include)
	}
	_ = be.Set("at", at)
	_ = be.Set("a", a.typeOf)
	_ = be.Set("an", a.typeOf)
	_ = be.Set("undefined", a.undefined)
	_ = be.Set("within", a.within)
	_ = be.Set("below", a.compare("below", func(got, want float64) bool { return got < want }))
	_ = be.Set("above", a.compare("above", func(got, want float64) bool { return got > want }))
	_ = be.Set("greaterThan", be.Get("above"))
	_ = at.Set("least", a.compare("at least", func(got, want float64) bool { return got >= want }))
	_ = at.Set("most", a.compare("at most", func(got, want float64) bool { return got <= want }))
	_ = deep.Set("equal", a.deepEqual)
	_ = have.Set("property", a.property)
	_ = have.Set("length", a.lengthChain())
	return base
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func lengthOf(v goja.Value) int64 {
	if isNullish(v) {
		return 0
	}
	switch val := v.Export().(type) {
	case string:
		return int64(len(val))
	case []any:
		return int64(len(val))
	}
	if obj, ok := v.(*goja.Object); ok {
		if l := obj.Get("length"); !isNullish(l) {
			return l.ToInteger()
		}
	}
	return 0
}
