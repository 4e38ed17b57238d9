//go:build linux

package pyramid

import "syscall"

// systemRAMForPyramidBudget returns the total physical RAM in bytes on
// Linux, the input WarnOnMemoryPressure uses to decide whether retaining
// the smallest pyramid level in memory is safe.
func systemRAMForPyramidBudget() (uint64, error) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, err
	}
	return info.Totalram * uint64(info.Unit), nil
}
