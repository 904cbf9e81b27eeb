package env

import (
	"fmt"
	"os"
	"syscall"

	"github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-ucfg/yaml"
	"golang.org/x/net/bpf"
)

// defaultPolicy denies network access with EPERM and kills the process on
// namespace, mount, tracing and reboot style syscalls
var defaultPolicy = seccomp.Policy{
	DefaultAction: seccomp.ActionAllow,
	Syscalls: []seccomp.SyscallGroup{
		{
			Action: seccomp.ActionErrno,
			Names: []string{
				"socket",
				"socketpair",
				"connect",
				"bind",
				"listen",
				"accept",
				"accept4",
			},
		},
		{
			Action: seccomp.ActionKillProcess,
			Names: []string{
				"ptrace",
				"mount",
				"umount2",
				"unshare",
				"setns",
				"pivot_root",
				"kexec_load",
				"reboot",
				"init_module",
				"delete_module",
			},
		},
	},
}

// readSeccompConf loads the policy from the yaml file, or the default policy
// when the file name is empty or the file does not exist
func readSeccompConf(name string) ([]syscall.SockFilter, error) {
	policy := defaultPolicy
	if name != "" {
		conf, err := yaml.NewConfigWithFile(name)
		switch {
		case err == nil:
			policy = seccomp.Policy{}
			if err := conf.Unpack(&policy); err != nil {
				return nil, fmt.Errorf("unpack seccomp policy %s: %w", name, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}
	return assemble(&policy)
}

func assemble(policy *seccomp.Policy) ([]syscall.SockFilter, error) {
	inst, err := policy.Assemble()
	if err != nil {
		return nil, err
	}
	rawInst, err := bpf.Assemble(inst)
	if err != nil {
		return nil, err
	}
	return toSockFilter(rawInst), nil
}

func toSockFilter(raw []bpf.RawInstruction) []syscall.SockFilter {
	filter := make([]syscall.SockFilter, 0, len(raw))
	for _, instruction := range raw {
		filter = append(filter, syscall.SockFilter{
			Code: instruction.Op,
			Jt:   instruction.Jt,
			Jf:   instruction.Jf,
			K:    instruction.K,
		})
	}
	return filter
}
