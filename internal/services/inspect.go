package services

import (
	"context"
	"errors"
	"os/exec"
	"runtime"

	"github.com/remixure/remixure/internal/validation"
)

// Inspector refreshes the browser pages showing address.
type Inspector func(ctx context.Context, address string) error

var errInspectionUnsupported = errors.New("browser refresh is only supported on macOS")

// refreshScript reloads every Chrome tab whose URL starts with the first
// argument.
const refreshScript = `on run argv
	set address to item 1 of argv
	tell application "Google Chrome"
		repeat with w in windows
			repeat with t in tabs of w
				if URL of t starts with address then tell t to reload
			end repeat
		end repeat
	end tell
end run`

// RefreshBrowser reloads the Chrome tabs showing address through osascript.
func RefreshBrowser(ctx context.Context, address string) error {
	if runtime.GOOS != "darwin" {
		return errInspectionUnsupported
	}
	if err := validation.ValidateURL(address); err != nil {
		return err
	}
	return exec.CommandContext(ctx, "osascript", "-e", refreshScript, address).Run()
}
