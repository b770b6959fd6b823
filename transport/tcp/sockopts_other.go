//go:build !unix

package tcp

import "syscall"

// reuseAddrControl is a no-op on platforms without SO_REUSEADDR's unix
// semantics (e.g. Windows uses SO_REUSEADDR differently and doesn't need
// this accommodation for a fast rebind); see sockopts_unix.go.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
