//go:build !linux && !windows && !darwin && !freebsd && !netbsd && !openbsd

package logger

import "os"

func isTerminal(*os.File) bool { return false }
