// Package main builds libnetspeed, a shared library exposing throughput
// measurement over a C ABI:
//
//	int get_net_speed(uint64_t *up, uint64_t *down);
//	int reset_net_speed(void);
//	int net_speed_last_error(void);
//
// Build with: go build -buildmode=c-shared -o libnetspeed.so ./cmd/libnetspeed
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"sync"

	"github.com/shini4i/netspeed/internal/export"
	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
)

var (
	exporterOnce sync.Once
	exporter     *export.Exporter
)

func instance() *export.Exporter {
	exporterOnce.Do(func() {
		logging.SetupFromEnv()
		exporter = export.New(monitor.New(netif.NewSystemSource()))
	})
	return exporter
}

// get_net_speed stores the current upload and download rates in bytes
// per second. It returns 0 on success and -1 on failure, in which case
// the outputs are left untouched. The first call reports 0/0.
//
//export get_net_speed
func get_net_speed(up, down *C.uint64_t) C.int {
	if up == nil || down == nil {
		return C.int(export.StatusError)
	}
	var u, d uint64
	status := instance().GetNetSpeed(&u, &d)
	if status == export.StatusOK {
		*up = C.uint64_t(u)
		*down = C.uint64_t(d)
	}
	return C.int(status)
}

// reset_net_speed discards the baseline so the next call starts over.
//
//export reset_net_speed
func reset_net_speed() C.int {
	return C.int(instance().Reset())
}

// net_speed_last_error returns the numeric code of the last failure, or 0.
//
//export net_speed_last_error
func net_speed_last_error() C.int {
	return C.int(instance().LastErrorCode())
}

func main() {}
