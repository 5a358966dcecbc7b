package a

import (
	"context"
	"os/exec"
)

func spawn(ctx context.Context) error {
	if err := exec.Command("swiftlint", "version").Run(); err != nil { // want `exec.Command outside execshell, use execshell.Runner`
		return err
	}
	_, err := exec.LookPath("swiftlint")
	if err != nil {
		return err
	}
	return exec.CommandContext(ctx, "swiftlint").Run() // want `exec.CommandContext outside execshell, use execshell.Runner`
}
