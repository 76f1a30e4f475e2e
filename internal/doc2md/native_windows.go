//go:build windows

package doc2md

import (
	"os"
	"path/filepath"
)

var officeCommands = []string{"soffice.exe", "soffice.com"}

func officeInstallPaths() []string {
	var paths []string
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if root := os.Getenv(env); root != "" {
			paths = append(paths, filepath.Join(root, "LibreOffice", "program", "soffice.exe"))
		}
	}
	return paths
}
