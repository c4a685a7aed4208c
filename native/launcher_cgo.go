//go:build cgo

package native

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef int32_t (*predict_phase)(int64_t, int64_t, int64_t, int64_t, int64_t, int32_t);
typedef int (*scheduler_main_fn)(char **argv, predict_phase cb);

extern int32_t phasebridgePredict(int64_t, int64_t, int64_t, int64_t, int64_t, int32_t);

static int call_scheduler_main(void *fn, char **argv) {
	return ((scheduler_main_fn)fn)(argv, phasebridgePredict);
}

static const char *last_dl_error(void) {
	const char *err = dlerror();
	return err ? err : "unknown error";
}
*/
import "C"
import (
	"unsafe"
)

// Run resolves the entry point and calls it with args and the prediction
// callback. The scheduler may also terminate the process itself.
func (l *Launcher) Run(args []string) (int, error) {
	argv, err := schedulerArgs(args)
	if err != nil {
		return 0, err
	}
	if current.Load() == nil {
		return 0, ErrNotInstalled
	}

	library := C.CString(l.Library)
	defer C.free(unsafe.Pointer(library))

	handle := C.dlopen(library, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return 0, &LoadError{Library: l.Library, Reason: C.GoString(C.last_dl_error())}
	}
	defer C.dlclose(handle)

	symbol := C.CString(l.Symbol)
	defer C.free(unsafe.Pointer(symbol))

	C.dlerror()
	entry := C.dlsym(handle, symbol)
	if entry == nil {
		return 0, &LoadError{Library: l.Library, Symbol: l.Symbol, Reason: C.GoString(C.last_dl_error())}
	}

	cargv := newCArgv(argv)
	defer cargv.free()

	return int(C.call_scheduler_main(entry, cargv.ptr)), nil
}

// cArgv is a NULL-terminated char*[] owned by C memory.
type cArgv struct {
	ptr   **C.char
	items []*C.char
}

func newCArgv(args []string) *cArgv {
	size := C.size_t(len(args)+1) * C.size_t(unsafe.Sizeof((*C.char)(nil)))
	ptr := (**C.char)(C.malloc(size))
	items := unsafe.Slice(ptr, len(args)+1)
	for i, arg := range args {
		items[i] = C.CString(arg)
	}
	items[len(args)] = nil
	return &cArgv{ptr: ptr, items: items}
}

func (a *cArgv) free() {
	for _, item := range a.items {
		if item != nil {
			C.free(unsafe.Pointer(item))
		}
	}
	C.free(unsafe.Pointer(a.ptr))
}
