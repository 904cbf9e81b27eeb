//go:build !linux

package main

import "github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/config"

func initCgroupMetrics(*config.Config, map[string]any) {}
