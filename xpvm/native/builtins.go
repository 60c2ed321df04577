package native

import (
	"fmt"
	"math"

	"github.com/colorfulnotion/xpvm/xpvm/block"
)

// DefaultFunctions is the native table used when no configuration names one.
var DefaultFunctions = []string{"print_int", "print_string", "print_double", "print_char", "alloc_string"}

// Builtins returns a registry holding the standard native library.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register("print_int", printInt)
	r.Register("print_string", printString)
	r.Register("print_double", printDouble)
	r.Register("print_char", printChar)
	r.Register("alloc_string", allocString)
	return r
}

func arg(args []uint64, i int) uint64 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

func printInt(env Env, args []uint64) (uint64, block.Exception) {
	fmt.Fprintf(env.Stdout(), "%d\n", int64(arg(args, 0)))
	return 1, block.ExcNone
}

func printString(env Env, args []uint64) (uint64, block.Exception) {
	s, exc := env.ReadString(arg(args, 0))
	if exc != block.ExcNone {
		return 0, exc
	}
	fmt.Fprintf(env.Stdout(), "%s\n", s)
	return 1, block.ExcNone
}

func printDouble(env Env, args []uint64) (uint64, block.Exception) {
	fmt.Fprintf(env.Stdout(), "%f\n", math.Float64frombits(arg(args, 0)))
	return 1, block.ExcNone
}

func printChar(env Env, args []uint64) (uint64, block.Exception) {
	fmt.Fprintf(env.Stdout(), "%c", rune(arg(args, 0)))
	return 1, block.ExcNone
}

// allocString formats its integer argument into a fresh string block.
func allocString(env Env, args []uint64) (uint64, block.Exception) {
	return env.AllocString(fmt.Sprintf("%d", int64(arg(args, 0))))
}
