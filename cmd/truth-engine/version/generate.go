package version

//go:generate sh -c "git describe --tags --always --dirty > version.txt"
