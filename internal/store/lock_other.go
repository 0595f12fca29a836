//go:build !unix && !windows

package store

import "os"

// No advisory locking on this platform; the in-process mutex still applies.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
