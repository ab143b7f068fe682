package server

import (
	esbuild "github.com/evanw/esbuild/pkg/api"
)

var buildTargets = map[string]esbuild.Target{
	"es2015": esbuild.ES2015,
	"es2016": esbuild.ES2016,
	"es2017": esbuild.ES2017,
	"es2018": esbuild.ES2018,
	"es2019": esbuild.ES2019,
	"es2020": esbuild.ES2020,
	"es2021": esbuild.ES2021,
	"es2022": esbuild.ES2022,
	"es2023": esbuild.ES2023,
	"es2024": esbuild.ES2024,
	"esnext": esbuild.ESNext,
}

// getBuildTarget returns the esbuild target of the config, default is es2020.
func getBuildTarget(name string) esbuild.Target {
	if target, ok := buildTargets[name]; ok {
		return target
	}
	return esbuild.ES2020
}
