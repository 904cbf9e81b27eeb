package env

// Backend names
const (
	BackendContainer = "container"
	BackendRlimit    = "rlimit"
	BackendDocker    = "docker"
)

// Config defines parameters to create environment builder
type Config struct {
	Backend      string
	WorkDir      string
	NetShare     bool
	SeccompConf  string
	CgroupPrefix string
	NoFallback   bool
	DockerImage  string

	// MountConf lists the read only host paths visible to candidates
	MountConf string
	// TmpFsParam is the mount data of the work dir and /tmp tmpfs
	TmpFsParam string
	// ContainerCredStart is the first host uid handed to environments when
	// running as root, 0 disables per environment uids
	ContainerCredStart int
	// ContainerInitPath is the container init binary, empty re-executes
	// the server itself
	ContainerInitPath string
}
