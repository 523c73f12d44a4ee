package jackhost

import "golang.org/x/sys/unix"

// lockMemory keeps the process resident so the audio thread never faults.
func lockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}
