// Package buildinfo carries version metadata stamped at link time.
package buildinfo

var (
	Name    = "fleetcmd"
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"name":    Name,
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
