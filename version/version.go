package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/wenzapen/bookrule/version.Version=..." at build time.
var (
	BuildTS   = ""
	GitHash   = ""
	GitBranch = ""
	Version   = ""
)

func GetVersion() string {
	v := Version
	if v == "" {
		v = "dev"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	if GitHash != "" {
		h := GitHash
		if len(h) > 7 {
			h = h[:7]
		}
		return fmt.Sprintf("%s-%s", v, h)
	}
	return v
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func Printer() {
	fmt.Println("Version:          ", GetVersion())
	fmt.Println("Git Branch:       ", orNone(GitBranch))
	fmt.Println("Git Hash:         ", orNone(GitHash))
	fmt.Println("Build Time (UTC): ", orNone(BuildTS))
}
