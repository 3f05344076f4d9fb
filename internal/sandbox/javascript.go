package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// JavaScriptOptions tunes the in-process JavaScript evaluator.
type JavaScriptOptions struct {
	// Timeout interrupts a run that takes longer. Zero means no limit
	// beyond the caller's context.
	Timeout time.Duration
}

// JavaScript evaluates source as the body of a function in a fresh goja
// runtime per run, with console output captured.
type JavaScript struct {
	fallback Console
	timeout  time.Duration
}

// NewJavaScript creates the JavaScript strategy. Console writes that escape
// a run are sent to fallback.
func NewJavaScript(fallback Console, opts JavaScriptOptions) *JavaScript {
	if fallback == nil {
		fallback = Discard{}
	}
	return &JavaScript{
		fallback: fallback,
		timeout:  opts.Timeout,
	}
}

func (j *JavaScript) Language() Language {
	return LanguageJavaScript
}

// Execute runs source. Compile and runtime failures come back as
// "Error: <message>" text, never as an error.
func (j *JavaScript) Execute(ctx context.Context, source string) (string, error) {
	ctx, cancel := withTimeout(ctx, j.timeout)
	defer cancel()

	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	text, err := Capture(j.fallback, func(console Console) (any, error) {
		if err := bindConsole(vm, console); err != nil {
			return nil, err
		}
		return evaluate(vm, source)
	})
	if err != nil {
		return "Error: " + scriptErrorMessage(err), nil
	}
	if text == "" {
		return successMessage, nil
	}
	return text, nil
}

func bindConsole(vm *goja.Runtime, console Console) error {
	info := func(call goja.FunctionCall) goja.Value {
		console.Info(joinArgs(call.Arguments))
		return goja.Undefined()
	}
	errorf := func(call goja.FunctionCall) goja.Value {
		console.Error(joinArgs(call.Arguments))
		return goja.Undefined()
	}

	obj := vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"log":   info,
		"info":  info,
		"debug": info,
		"warn":  errorf,
		"error": errorf,
	} {
		if err := obj.Set(name, fn); err != nil {
			return err
		}
	}
	return vm.Set("console", obj)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

// evaluate builds the source with the Function constructor and calls it,
// so the snippet sees only globals and its own locals.
func evaluate(vm *goja.Runtime, source string) (any, error) {
	fn, err := vm.New(vm.Get("Function"), vm.ToValue(source))
	if err != nil {
		return nil, err
	}

	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, errors.New("compiled source is not callable")
	}

	result, err := call(goja.Undefined())
	if err != nil {
		return nil, err
	}
	if result == nil || goja.IsUndefined(result) {
		return nil, nil
	}

	// Convert through the script's own String so a throwing toString is
	// reported like any other script error.
	toString, ok := goja.AssertFunction(vm.Get("String"))
	if !ok {
		return nil, errors.New("String is not callable")
	}
	text, err := toString(goja.Undefined(), result)
	if err != nil {
		return nil, err
	}
	return text.String(), nil
}

// scriptErrorMessage extracts the message a JavaScript catch block would see.
func scriptErrorMessage(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause.Error()
		}
		return fmt.Sprint(interrupted.Value())
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		value := exception.Value()
		if obj, ok := value.(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				return msg.String()
			}
		}
		if value != nil {
			return value.String()
		}
	}

	return err.Error()
}
