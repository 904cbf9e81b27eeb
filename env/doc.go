// Package env provides a unified method to create environment for envexec.
//
// For linux, the container backend is the default: candidates run inside
// pre-forked containers with private namespaces and read only host binds.
// The rlimit backend is the fallback, it unshares user, mount and pid
// namespaces on every fork / exec. Both run each candidate inside its own
// cgroup when one can be created.
//
// On every platform with a docker daemon, the docker backend runs each
// candidate in a throwaway container without network.
package env
