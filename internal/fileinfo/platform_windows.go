//go:build windows

package fileinfo

import (
	"syscall"
)

const fileAttributeHidden = 0x02

// hasHiddenAttribute checks the Windows hidden attribute of path
func hasHiddenAttribute(path string) bool {
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return false
	}

	attrs, err := syscall.GetFileAttributes(pathPtr)
	if err != nil {
		return false
	}

	return attrs&fileAttributeHidden != 0
}
