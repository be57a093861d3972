//go:build !unix

package registry

import "os"

// No advisory locking outside unix; mutations rely on a single writer.
func tryLock(*os.File) (bool, error) { return true, nil }

func unlock(*os.File) error { return nil }
