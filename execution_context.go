package viewpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

// ExecutionContext is a handle to one Runtime execution context (a main or
// isolated-utility JS world) in one Frame. It is the thing that actually
// issues Runtime.callFunctionOn/Runtime.evaluate; Frame, Locator and the
// wait subsystem all obtain one via Frame.mainWorld/utilityWorld rather
// than tracking execution context ids themselves.
type ExecutionContext struct {
	frame *Frame
	id    runtime.ExecutionContextID
}

// errAppender collects errors from a chain of calls without requiring an
// early return after every one, mirroring the teacher's call.go/poll.go
// helper (duplicated there; consolidated to one definition here).
type errAppender struct {
	errs []error
}

func (ea *errAppender) append(err error) bool {
	if err != nil {
		ea.errs = append(ea.errs, err)
		return true
	}
	return false
}

func (ea *errAppender) error() error {
	switch len(ea.errs) {
	case 0:
		return nil
	case 1:
		return ea.errs[0]
	default:
		return fmt.Errorf("%v (and %d more errors)", ea.errs[0], len(ea.errs)-1)
	}
}

// Evaluate runs expression as the body of an async function (so that bare
// "return" yields the result and top-level await works) and decodes the
// result into res, which may be nil to discard the result.
func (ec *ExecutionContext) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return ec.Call(ctx, "async function(){"+expression+"}", res)
}

// Call invokes the JS function fnDecl with args marshaled as CDP call
// arguments, and decodes its return value into res.
func (ec *ExecutionContext) Call(ctx context.Context, fnDecl string, res interface{}, args ...interface{}) error {
	var callArgs []*runtime.CallArgument
	for _, a := range args {
		buf, err := json.Marshal(a)
		if err != nil {
			return err
		}
		callArgs = append(callArgs, &runtime.CallArgument{Value: buf})
	}

	exec := cdp.WithExecutor(ctx, ec.frame.page.session)
	obj, exceptionDetails, err := runtime.CallFunctionOn(fnDecl).
		WithExecutionContextID(ec.id).
		WithArguments(callArgs).
		WithReturnByValue(res != nil).
		WithAwaitPromise(true).
		Do(exec)
	if err != nil {
		return wrapCdp("Runtime.callFunctionOn", err)
	}
	if exceptionDetails != nil {
		return exceptionDetails.Err()
	}
	return parseRemoteObject(obj, res)
}

// parseRemoteObject decodes a Runtime.RemoteObject's by-value payload into
// res. The teacher pack's call.go referenced a helper of this name without
// ever defining it; this is the definition it was missing.
func parseRemoteObject(obj *runtime.RemoteObject, res interface{}) error {
	if res == nil {
		return nil
	}
	if obj == nil || obj.Value == nil {
		return nil
	}
	return json.Unmarshal(obj.Value, res)
}
