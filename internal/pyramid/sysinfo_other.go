//go:build !darwin && !linux

package pyramid

import "fmt"

// systemRAMForPyramidBudget is unsupported on this platform; callers (just
// WarnOnMemoryPressure) treat the error as "skip the advisory check".
func systemRAMForPyramidBudget() (uint64, error) {
	return 0, fmt.Errorf("unsupported platform for RAM detection")
}
