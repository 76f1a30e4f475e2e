//go:build !windows

package doc2md

var officeCommands = []string{"soffice", "libreoffice"}

func officeInstallPaths() []string {
	return []string{
		"/Applications/LibreOffice.app/Contents/MacOS/soffice",
		"/opt/libreoffice/program/soffice",
		"/usr/lib/libreoffice/program/soffice",
	}
}
