package config

import (
	"os"
	"runtime"
	"time"

	"github.com/koding/multiconfig"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

// Config defines truth engine server configuration
type Config struct {
	// sandbox
	Backend      string `flagUsage:"sandbox backend (container / rlimit / docker)" default:"container"`
	WorkDir      string `flagUsage:"specifies directory to create candidate environments (temp dir by default)"`
	PreFork      int    `flagUsage:"control # of the prefork environments" default:"0"`
	NetShare     bool   `flagUsage:"share net namespace with host"`
	SeccompConf  string `flagUsage:"specifies seccomp filter" default:"seccomp.yaml"`
	CgroupPrefix string `flagUsage:"control cgroup prefix (empty disables cgroup)" default:"truth_engine"`
	NoFallback   bool   `flagUsage:"fail when cgroup is not available"`
	DockerImage  string `flagUsage:"image for docker backend" default:"python:3.12-slim"`
	MountConf    string `flagUsage:"specifies mount configuration file" default:"mount.yaml"`
	TmpFsParam   string `flagUsage:"tmpfs mount data for the work dir and /tmp" default:"size=16m,nr_inodes=4k"`

	ContainerCredStart int    `flagUsage:"control the start uid&gid for candidate environments (0 uses one uid)" default:"10000"`
	ContainerInitPath  string `flagUsage:"container init path"`
	Profile      string `flagUsage:"specifies runtime profile yaml (python3 by default)"`
	Parallelism  int    `flagUsage:"control the # of concurrent candidate executions (number of cpu when <= 0)" default:"4"`

	// candidate limit
	CandidateTimeLimit   time.Duration `flagUsage:"specifies wall clock limit for each candidate" default:"5s"`
	CandidateMemoryLimit *envexec.Size `flagUsage:"specifies memory limit for each candidate" default:"256m"`
	ExtraMemoryLimit     *envexec.Size `flagUsage:"specifies extra memory buffer for check memory limit" default:"16k"`
	OutputLimit          *envexec.Size `flagUsage:"specifies max captured stdout / stderr for each candidate" default:"1m"`
	ProcLimit            uint64        `flagUsage:"specifies max process count for each candidate" default:"16"`

	// verification
	RequestDeadline time.Duration `flagUsage:"specifies overall deadline for each verification" default:"60s"`
	MaxCandidates   int           `flagUsage:"specifies max # of candidates verified for each request" default:"5"`

	// generator
	GeminiAPIKey  string `flagUsage:"Gemini api key (GEMINI_API_KEY)"`
	GeminiModel   string `flagUsage:"Gemini model" default:"gemini-2.5-flash"`
	OpenAIAPIKey  string `flagUsage:"OpenAI compatible api key (DEEPSEEK_API_KEY)"`
	OpenAIBaseURL string `flagUsage:"OpenAI compatible base url" default:"https://api.deepseek.com"`
	OpenAIModel   string `flagUsage:"OpenAI compatible model" default:"deepseek-chat"`

	// server config
	HTTPAddr      string `flagUsage:"specifies the http binding address" default:":5050"`
	MonitorAddr   string `flagUsage:"specifies the metrics binding address" default:":5052"`
	AuthToken     string `flagUsage:"bearer token auth for REST / WebSocket"`
	EnableDebug   bool   `flagUsage:"enable debug endpoint"`
	EnableMetrics bool   `flagUsage:"enable promethus metrics endpoint"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from flag & environment variables
func (c *Config) Load() error {
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "TE",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "TE",
		},
	)
	if os.Getpid() == 1 {
		c.Release = true
	}
	if err := cl.Load(c); err != nil {
		return err
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	return nil
}
