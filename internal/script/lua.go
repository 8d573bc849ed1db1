package script

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// LuaEngine runs bodies as Lua 5.1 functions. Compiled prototypes are shared;
// every invocation borrows its own LState from a pool.
type LuaEngine struct {
	pool sync.Pool
}

// NewLuaEngine creates a Lua engine.
func NewLuaEngine() *LuaEngine {
	e := &LuaEngine{}
	e.pool.New = func() any { return newLuaState() }
	return e
}

// Name implements Engine.
func (e *LuaEngine) Name() string { return EngineLua }

// Compile implements Engine. The body becomes
//
//	return function(<params>) <body> end
func (e *LuaEngine) Compile(body string, params ...string) (Function, error) {
	src := "return function(" + strings.Join(params, ", ") + ")\n" + body + "\nend"
	chunk, err := parse.Parse(strings.NewReader(src), "script")
	if err != nil {
		return nil, &CompileError{Engine: EngineLua, Err: err}
	}
	proto, err := lua.Compile(chunk, "script")
	if err != nil {
		return nil, &CompileError{Engine: EngineLua, Err: err}
	}
	return &luaFunction{engine: e, proto: proto}, nil
}

type luaFunction struct {
	engine *LuaEngine
	proto  *lua.FunctionProto
}

func (f *luaFunction) Invoke(ctx context.Context, args ...any) (result any, err error) {
	L := f.engine.pool.Get().(*lua.LState)
	reusable := true
	defer func() {
		if reusable {
			L.SetTop(0)
			f.engine.pool.Put(L)
		} else {
			L.Close()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			reusable = false
			err = &RuntimeError{Engine: EngineLua, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if ctx != nil && ctx.Done() != nil {
		L.SetContext(ctx)
		defer L.RemoveContext()
	}

	// Each call gets a fresh global environment that falls back to the shared
	// globals, so globals assigned by one request never leak into another.
	env := L.NewTable()
	meta := L.NewTable()
	meta.RawSetString("__index", L.Get(lua.GlobalsIndex))
	L.SetMetatable(env, meta)
	env.RawSetString("_G", env)
	for _, name := range luaLibraries {
		if lib, ok := L.GetGlobal(name).(*lua.LTable); ok {
			env.RawSetString(name, copyTable(L, lib))
		}
	}

	outer := L.NewFunctionFromProto(f.proto)
	L.SetFEnv(outer, env)
	if err := L.CallByParam(lua.P{Fn: outer, NRet: 1, Protect: true}); err != nil {
		reusable = false
		return nil, &RuntimeError{Engine: EngineLua, Err: err}
	}
	fn := L.Get(-1)
	L.Pop(1)

	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = toLua(L, a)
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
		if ctx != nil && ctx.Err() != nil {
			reusable = false
		}
		return nil, &RuntimeError{Engine: EngineLua, Err: err}
	}
	ret := L.Get(-1)
	L.Pop(1)

	// Copy table arguments back so in-place mutation is visible to the caller.
	for i, a := range args {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		tbl, ok := largs[i].(*lua.LTable)
		if !ok {
			continue
		}
		if back, ok := fromLua(tbl, 0).(map[string]any); ok {
			replaceMap(m, back)
		} else {
			replaceMap(m, map[string]any{})
		}
	}
	return fromLua(ret, 0), nil
}

// luaLibraries are copied into every call's environment. Isolation stops
// there: the string metatable and package.loaded still reach the pooled
// state's originals. Scripts are trusted configuration, not sandboxed code.
var luaLibraries = []string{lua.StringLibName, lua.TabLibName, lua.MathLibName, "json"}

func copyTable(L *lua.LState, src *lua.LTable) *lua.LTable {
	dst := L.NewTable()
	src.ForEach(func(k, v lua.LValue) {
		dst.RawSet(k, v)
	})
	return dst
}

func newLuaState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			panic(fmt.Sprintf("open lua library %q: %v", lib.name, err))
		}
	}
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}

	jsonMod := L.NewTable()
	L.SetField(jsonMod, "encode", L.NewFunction(luaJSONEncode))
	L.SetField(jsonMod, "decode", L.NewFunction(luaJSONDecode))
	L.SetGlobal("json", jsonMod)
	L.SetGlobal("jsonpath", L.NewFunction(luaJSONPath))
	return L
}

// json.encode(value) -> string
func luaJSONEncode(L *lua.LState) int {
	s, err := EncodeJSON(fromLua(L.CheckAny(1), 0))
	if err != nil {
		L.RaiseError("json.encode: %v", err)
		return 0
	}
	L.Push(lua.LString(s))
	return 1
}

// json.decode(string) -> value
func luaJSONDecode(L *lua.LState) int {
	v, err := DecodeJSON(L.CheckString(1))
	if err != nil {
		L.RaiseError("json.decode: %v", err)
		return 0
	}
	L.Push(toLua(L, v))
	return 1
}

// jsonpath(document, path) -> list of matches
func luaJSONPath(L *lua.LState) int {
	doc := fromLua(L.CheckAny(1), 0)
	res, err := JSONPath(doc, L.CheckString(2))
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	L.Push(toLua(L, res))
	return 1
}
