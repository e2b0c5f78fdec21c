package module

import "os"

// releaseNativeTemp unlinks a temporary native library extracted to disk
// for a module that carried one.
func releaseNativeTemp(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
