package runtime

import (
	"context"
	"fmt"
	"reflect"
	goruntime "runtime"
	"strings"

	"github.com/FabG/chainlit-ui/pkg/types"
)

// Wrap returns a traced version of fn. When the context carries a session, the
// call opens a step, records the argument as input and the return value as
// output, and closes the step when fn returns. The close runs on every exit
// path: normal return, error, panic, and cancellation. Outside a session the
// function runs untraced.
//
// Nested wrapped calls form a tree: the derived context passed to fn makes the
// new step the parent of any step opened inside it. Forked goroutines inherit
// the step stack of the context they were started with.
//
// An empty name defaults to the function's name.
func Wrap[In, Out any](typ types.StepType, name string, fn func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	if name == "" {
		name = funcName(fn)
	}
	return func(ctx context.Context, in In) (Out, error) {
		s := FromContext(ctx)
		if s == nil {
			return fn(ctx, in)
		}
		return traced(ctx, s, typ, name, in, fn)
	}
}

func traced[In, Out any](ctx context.Context, s *Session, typ types.StepType, name string, in In, fn func(context.Context, In) (Out, error)) (out Out, err error) {
	stepCtx, h := s.tracker.Open(ctx, typ, name, types.ValueOf(in))
	defer func() {
		if r := recover(); r != nil {
			h.t.finish(h.id, fmt.Errorf("panic in step %s: %v", name, r), types.Value{})
			panic(r)
		}
		h.t.finish(h.id, err, types.ValueOf(out))
	}()
	out, err = fn(stepCtx, in)
	return out, err
}

// Run executes fn inside a new step without typed input or output. Useful for
// tracing a block of work imperatively; output can still be set through
// CurrentStep.
func Run(ctx context.Context, typ types.StepType, name string, fn func(context.Context) error) error {
	s := FromContext(ctx)
	if s == nil {
		return fn(ctx)
	}
	stepCtx, h := s.tracker.Open(ctx, typ, name, types.Value{})
	var err error
	defer func() {
		if r := recover(); r != nil {
			h.t.finish(h.id, fmt.Errorf("panic in step %s: %v", name, r), types.Value{})
			panic(r)
		}
		h.t.finish(h.id, err, types.Value{})
	}()
	err = fn(stepCtx)
	return err
}

// funcName derives a step name from the function's symbol name.
func funcName(fn any) string {
	f := goruntime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "step"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" {
		return "step"
	}
	return name
}
