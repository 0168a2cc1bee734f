package hostabi

/*
#include <stdlib.h>
#include <string.h>
#include "hostabi.h"
*/
import "C"

import (
	"strconv"
	"unsafe"

	"github.com/vehiclesfx/extension/internal/dispatcher"
)

// VSFXInit is called once by the game-side loader with its function table.
// Returns 1 when the plugin is ready.
//
//export VSFXInit
func VSFXInit(api *C.vsfx_host_api) C.int32_t {
	if api == nil {
		Config.log.Error().Msg("VSFXInit called without a host table")
		return 0
	}
	_, err := route(dispatcher.Event{
		Command: CmdInit,
		Payload: InitPayload{Host: newHost(api)},
	})
	if err != nil {
		Config.log.Error().Err(err).Msg("Init failed")
		return 0
	}
	return 1
}

// VSFXProcess is called once per game tick.
//
//export VSFXProcess
func VSFXProcess(f *C.vsfx_frame) {
	if f == nil {
		return
	}
	hook(Config.frame, dispatcher.Event{Command: CmdProcess, Payload: frame(f)})
}

// VSFXPauseAllSounds is called when the game pauses every sound.
//
//export VSFXPauseAllSounds
func VSFXPauseAllSounds() {
	hook(Config.log, dispatcher.Event{Command: CmdPauseAll})
}

// VSFXMenuPaint is called each time the frontend menu draws. page is 0 when
// no menu is shown.
//
//export VSFXMenuPaint
func VSFXMenuPaint(page C.int32_t) {
	hook(Config.frame, dispatcher.Event{Command: CmdMenu, Args: []string{strconv.Itoa(int(page))}})
}

// VSFXShutdown is called before the plugin is unloaded.
//
//export VSFXShutdown
func VSFXShutdown() {
	hook(Config.log, dispatcher.Event{Command: CmdShutdown})
}

// VSFXVersion writes the version reply into output.
//
//export VSFXVersion
func VSFXVersion(output *C.char, outputsize C.size_t) {
	response := formatResponse(Config.version, nil)
	if Config.dispatcher != nil && Config.dispatcher.HasHandler(CmdVersion) {
		response = formatResponse(route(dispatcher.Event{Command: CmdVersion}))
	}
	reply(response, output, outputsize)
}

// reply copies response into the host's buffer, truncating and always
// terminating it.
func reply(response string, output *C.char, outputsize C.size_t) {
	if output == nil || outputsize == 0 {
		return
	}
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	size := C.strlen(result) + 1
	if size > outputsize {
		size = outputsize
	}
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), size)
	*(*C.char)(unsafe.Add(unsafe.Pointer(output), size-1)) = 0
}
