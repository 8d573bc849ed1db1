// Package script compiles user-authored function bodies once and invokes them
// per request.
//
// An Engine turns a body plus parameter names into a Function:
//
//	fn, err := engine.Compile(`return request.method == "GET"`, "request")
//	out, err := fn.Invoke(ctx, req.Value())
//
// Two engines are available. The Lua engine (gopher-lua, the default) runs
// bodies as Lua functions; table arguments are copied back into the Go maps
// after the call, so builders can mutate proxyRequest or response in place.
// The expr engine (expr-lang/expr) evaluates a single expression; when a
// builder's expression yields a map it is merged into the last argument.
//
// Compile failures are *CompileError, invocation failures *RuntimeError.
// Panics raised while a function runs are recovered into a *RuntimeError.
package script
