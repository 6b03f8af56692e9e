package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/pslog"
)

type scriptValidator struct {
	def     model.ScriptValidation
	program *goja.Program
	logger  pslog.Base
}

func newScript(def model.ScriptValidation, logger pslog.Base) (*scriptValidator, error) {
	if strings.TrimSpace(def.Script) == "" {
		return nil, fmt.Errorf("script: source is required")
	}
	program, err := goja.Compile("validation.js", def.Script, false)
	if err != nil && strings.Contains(err.Error(), "Illegal return statement") {
		// top-level return: run the body as a function
		program, err = goja.Compile("validation.js", "(function() {\n"+def.Script+"\n})()", false)
	}
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return &scriptValidator{def: def, program: program, logger: logger}, nil
}

func (v *scriptValidator) Validate(ctx context.Context, groups []ResponseGroup) error {
	selected, err := Select(v.def.TargetOf(), groups)
	if err != nil {
		return err
	}
	for _, g := range selected {
		for _, e := range g.Entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := v.run(e, g.Index); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *scriptValidator) run(e Entry, index int) error {
	vm := goja.New()
	registerConsole(vm, v.logger, e.Variant, index)
	registerExpect(vm)

	res := vm.NewObject()
	_ = res.Set("status", e.Response.Code)
	_ = res.Set("body", e.Response.Content)
	_ = res.Set("contentType", e.Response.ContentType)
	headers := map[string]any{}
	for k, vals := range e.Response.Headers {
		headers[strings.ToLower(k)] = strings.Join(vals, ", ")
	}
	_ = res.Set("headers", headers)
	vm.Set("res", res)
	vm.Set("variant", e.Variant)
	vm.Set("index", index)

	out, err := vm.RunProgram(v.program)
	if err != nil {
		return fmt.Errorf("%w: variant %s request with index %d: %v", ErrScript, e.Variant, index, err)
	}
	// Assertion style scripts built on expect() complete with undefined.
	if out != nil && !goja.IsUndefined(out) && !out.ToBoolean() {
		return fmt.Errorf("%w: variant %s request with index %d: script returned %v", ErrScript, e.Variant, index, out)
	}
	return nil
}

func registerConsole(vm *goja.Runtime, logger pslog.Base, variant string, index int) {
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		logger.Debug("validation.script.console", "variant", variant, "index", index, "msg", strings.Join(parts, " "))
		return goja.Undefined()
	})
	vm.Set("console", console)
}
