package di

import (
	"context"
	"fmt"
	"reflect"
)

// invoker calls a bound Go function. A leading context.Context parameter is
// filled with the resolution context; a trailing error result is returned.
type invoker func(ctx context.Context, args []any) (any, error)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func newInvoker(name string, fn any) invoker {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		panic(fmt.Sprintf("di: binding for %s must be a function, got %T", name, fn))
	}
	if ft.NumOut() == 0 || ft.NumOut() > 2 || (ft.NumOut() == 2 && !ft.Out(1).Implements(errorType)) {
		panic(fmt.Sprintf("di: binding for %s must return (T) or (T, error)", name))
	}
	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	offset := 0
	if withCtx {
		offset = 1
	}

	return func(ctx context.Context, args []any) (any, error) {
		if len(args)+offset != ft.NumIn() {
			return nil, fmt.Errorf("di: %s takes %d arguments, plan passes %d", name, ft.NumIn()-offset, len(args))
		}
		in := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, a := range args {
			pt := ft.In(i + offset)
			if a == nil {
				in = append(in, reflect.Zero(pt))
				continue
			}
			av := reflect.ValueOf(a)
			if !av.Type().AssignableTo(pt) {
				return nil, fmt.Errorf("di: %s argument %d is %T, want %v", name, i, a, pt)
			}
			in = append(in, av)
		}

		out := fv.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, fmt.Errorf("%s: %w", name, out[1].Interface().(error))
		}
		return out[0].Interface(), nil
	}
}
