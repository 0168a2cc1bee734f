package hostabi

import (
	"path/filepath"
	"unsafe"
)

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>
#include <stdlib.h>

char* vsfx_module_path() {
    HMODULE mod = NULL;
    if (!GetModuleHandleExA(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS |
                            GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
                            (LPCSTR)vsfx_module_path, &mod)) {
        return NULL;
    }
    DWORD size = MAX_PATH;
    char* buf = NULL;
    for (;;) {
        char* grown = (char*)realloc(buf, size);
        if (!grown) {
            free(buf);
            return NULL;
        }
        buf = grown;
        DWORD n = GetModuleFileNameA(mod, buf, size);
        if (n == 0) {
            free(buf);
            return NULL;
        }
        if (n < size) {
            return buf;
        }
        size *= 2;
    }
}

#else

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

char* vsfx_module_path() {
    Dl_info info;
    if (dladdr((void*)vsfx_module_path, &info) == 0 || info.dli_fname == NULL) {
        return NULL;
    }
    return strdup(info.dli_fname);
}

#endif
*/
import "C"

// ModulePath returns the absolute path of the loaded plugin binary, or "".
func ModulePath() string {
	p := C.vsfx_module_path()
	if p == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p)
}

// PluginDir is the folder the plugin was loaded from. Settings, assets and
// the diagnostic log live there. Falls back to the working directory.
func PluginDir() string {
	p := ModulePath()
	if p == "" {
		return "."
	}
	return filepath.Dir(p)
}
