package execshell

import "os/exec"

func run(name string) error {
	return exec.Command(name).Run()
}
