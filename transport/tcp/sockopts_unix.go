//go:build unix

// Package tcp is an out-of-process Group: persistent TCP connections
// between ranks carry length-prefixed, tagged frames, one long-lived
// connection per peer reused across many messages.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package tcp

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aistore-labs/ridx/rlog"
)

// reuseAddrControl is installed on the listener's net.ListenConfig so a
// restarted rank can rebind its port immediately instead of hitting
// "address already in use" while the old socket drains.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	if sockErr != nil {
		rlog.Warningf("SO_REUSEADDR: %v", sockErr)
	}
	return nil
}
