//go:build !windows

package fileinfo

// hasHiddenAttribute is always false outside Windows; dot-files are handled by IsHidden.
func hasHiddenAttribute(path string) bool {
	return false
}
