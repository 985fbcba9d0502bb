// Package rdp launches Windows Remote Desktop sessions with credentials
// staged in the Windows Credential Manager.
package rdp

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// sessionStartWait bounds how long we wait for mstsc before clearing the
// cached credential. The credential only needs to live until the session has
// authenticated.
const sessionStartWait = 10 * time.Second

// Session describes an RDP connection to start.
type Session struct {
	Host       string
	Username   string
	Password   string
	Fullscreen bool
}

// Start caches the credential for TERMSRV/{host}, launches mstsc and removes
// the credential again once the session has started or the wait times out.
func Start(ctx context.Context, s Session) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("rdp sessions require windows, running on %s", runtime.GOOS)
	}
	if s.Host == "" {
		return fmt.Errorf("rdp session without host")
	}

	target := "TERMSRV/" + s.Host
	store := exec.CommandContext(ctx, "cmdkey",
		"/generic:"+target, "/user:"+s.Username, "/pass:"+s.Password)
	if out, err := store.CombinedOutput(); err != nil {
		return fmt.Errorf("store credential for %s: %w: %s", s.Host, err, out)
	}
	defer func() {
		// Best effort: the credential must not outlive the login.
		_ = exec.Command("cmdkey", "/delete:"+target).Run()
	}()

	args := []string{"/v:" + s.Host}
	if s.Fullscreen {
		args = append(args, "/f")
	}
	cmd := exec.CommandContext(ctx, "mstsc", args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mstsc: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mstsc exited: %w", err)
		}
	case <-time.After(sessionStartWait):
		// Session is up and running on its own.
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
