// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Command rootsig composes resource signatures into a D3D12
// root signature and adapts shaders to it.
//
// Usage:
//
//	rootsig [options] compose <layout.toml>
//	rootsig [options] remap <layout.toml> <shader[:stage]>...
//	rootsig [options] hlsl <layout.toml> <shader.wgsl>
//
// compose prints the root signature and the binding map of
// every stage. remap patches compiled shaders so that their
// registers match the root signature, writing them to the
// directory given by -o. hlsl translates WGSL to HLSL whose
// registers match the root signature.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/driver/d3d12"
)

var (
	configPath = flag.String("config", "", "driver configuration file (TOML)")
	output     = flag.String("o", ".", "output directory of remapped shaders")
	stageName  = flag.String("stage", "fragment", "default stage of remapped shaders")
	smName     = flag.String("sm", "5.1", "shader model of generated HLSL")
	verbose    = flag.Bool("v", false, "enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] compose|remap|hlsl <layout.toml> [files...]\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := run(args[0], args[1], args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "rootsig: %v\n", err)
		os.Exit(1)
	}
}

// session holds the state shared by commands.
type session struct {
	drv    *d3d12.Driver
	lay    *layout
	sigs   []driver.Signature
	root   *d3d12.RootSignature
	stages driver.Stage
}

// open loads the layout and composes its root signature.
func open(layoutPath string) (*session, error) {
	cfg := d3d12.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = d3d12.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	drv := &d3d12.Driver{}
	if err := drv.Configure(cfg); err != nil {
		return nil, err
	}
	if _, err := drv.Open(); err != nil {
		return nil, err
	}
	s := &session{drv: drv}
	if err := s.load(layoutPath); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) load(layoutPath string) (err error) {
	if s.lay, err = loadLayout(layoutPath); err != nil {
		return
	}
	descs, err := s.lay.descs()
	if err != nil {
		return
	}
	for i := range descs {
		sig, err := s.drv.NewSignature(&descs[i])
		if err != nil {
			return err
		}
		s.sigs = append(s.sigs, sig)
		s.stages |= sig.(*d3d12.Signature).ShaderStages()
	}
	l, err := s.drv.NewLayout(s.sigs)
	if err != nil {
		return
	}
	s.root = l.(*d3d12.RootSignature)
	return
}

func (s *session) close() {
	if s.root != nil {
		s.root.Destroy()
	}
	for _, sig := range s.sigs {
		sig.Destroy()
	}
	s.drv.Close()
}

func run(cmd, layoutPath string, files []string) error {
	s, err := open(layoutPath)
	if err != nil {
		return err
	}
	defer s.close()
	switch cmd {
	case "compose":
		if err := printRootSignature(os.Stdout, s.root); err != nil {
			return err
		}
		return printBindings(os.Stdout, s.root, s.stages)
	case "remap":
		return s.remap(files)
	case "hlsl":
		if len(files) != 1 {
			return errors.New("hlsl takes a single WGSL file")
		}
		sm, ok := shaderModels[*smName]
		if !ok {
			return errors.Errorf("unknown shader model %q", *smName)
		}
		src, err := os.ReadFile(files[0])
		if err != nil {
			return err
		}
		return compileHLSL(os.Stdout, string(src), s.root, sm)
	}
	return errors.Errorf("unknown command %q", cmd)
}

// splitStage splits a shader argument into its path and
// stage.
func splitStage(arg string) (string, driver.Stage, error) {
	path, name := arg, *stageName
	if i := strings.LastIndexByte(arg, ':'); i > 0 && !strings.ContainsAny(arg[i+1:], `/\`) {
		path, name = arg[:i], arg[i+1:]
	}
	stage, err := parseStage([]string{name})
	return path, stage, err
}

// remap creates a pipeline from the layout and the given
// shaders, then writes the remapped bytecode.
func (s *session) remap(files []string) error {
	if len(files) == 0 {
		return errors.New("remap requires at least one shader")
	}
	typ, err := lookup(pipelineTypes, "pipeline type", s.lay.Pipeline.Type)
	if err != nil {
		return err
	}
	state := &driver.PipelineState{
		Type:             typ,
		Sigs:             s.sigs,
		ShaderRecordName: s.lay.Pipeline.ShaderRecordName,
		ShaderRecordSize: s.lay.Pipeline.ShaderRecordSize,
	}
	paths := make(map[driver.Stage][]string)
	for _, arg := range files {
		path, stage, err := splitStage(arg)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		code, err := s.drv.NewShaderCode(data)
		if err != nil {
			return errors.Wrap(err, path)
		}
		defer code.Destroy()
		state.Funcs = append(state.Funcs, driver.StageFunc{Stage: stage, Func: driver.ShaderFunc{Code: code, Name: "main"}})
		paths[stage] = append(paths[stage], path)
	}
	pl, err := s.drv.NewPipeline(state)
	if err != nil {
		return err
	}
	defer pl.Destroy()
	p := pl.(*d3d12.Pipeline)
	for stage, ps := range paths {
		for i, code := range p.Code(stage) {
			out := filepath.Join(*output, filepath.Base(ps[i]))
			if err := os.WriteFile(out, code, 0o644); err != nil {
				return err
			}
			slog.Info("shader remapped", "in", ps[i], "out", out, "stage", stage.String())
		}
	}
	return nil
}
