package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is the release of cvfemasm
const Version = "0.1.0"

// Cfg holds the configuration of the current invocation
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config is the path of a configuration file holding any of
              the options below.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level is one of panic, fatal, error, warn, info, debug
              or trace.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "options",
			usage: `
              options is a TOML file of solution options: relaxation
              factors, lumped mass, scatter strategy, coloring method and
              worker count.
              Options given on the command line take precedence.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "mesh",
			usage: `
              mesh is one of line, quad, tri or hex for a generated grid,
              or the path of a Gambit neutral file.`,
			shorthand:  "m",
			defaultVal: "quad",
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "cells",
			usage: `
              cells is the number of grid cells per direction of a
              generated mesh.`,
			defaultVal: []int{8, 8, 8},
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "length",
			usage: `
              length is the extent of a generated mesh per direction.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "scalar",
			usage: `
              scalar names the transported field.`,
			defaultVal: "T",
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "density",
			usage: `
              density is the uniform density.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "diffusivity",
			usage: `
              diffusivity is the uniform diffusive flux coefficient.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "flux",
			usage: `
              flux is the normal flux imposed on every boundary face.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "steps",
			usage: `
              steps is the number of time steps.`,
			shorthand:  "n",
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "iterations",
			usage: `
              iterations is the number of assemblies per time step.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "dt",
			usage: `
              dt is the time step size.`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "order",
			usage: `
              order is the BDF order, 1 or 2.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of assembly goroutines; 0 uses one
              per CPU.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "scatter",
			usage: `
              scatter is the strategy for adding into shared rows:
              coloring or atomic. Empty keeps the solution options.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "coloring",
			usage: `
              coloring is the method grouping entities for the coloring
              scatter: first_fit, welsh_powell or dsatur. Empty keeps the
              solution options.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "relaxation",
			usage: `
              relaxation maps field names to the factor applied to their
              diagonal mass contribution, for example {"T": 0.8}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "lumped",
			usage: `
              lumped selects the lumped mass matrix for the scalar.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "shifted",
			usage: `
              shifted evaluates diffusion and nodal gradients at the edge
              midpoints.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "device",
			usage: `
              device runs the mass term on an OCCA device: auto, OpenMP,
              CUDA or Serial. Empty assembles everything on the host.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
		{
			name: "solve",
			usage: `
              solve applies a dense Newton update after every assembly.
              Only practical for small meshes.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{assembleCmd.Flags()},
		},
	}

	Cfg = viper.New()
	Cfg.SetEnvPrefix("CVFEM")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				set.StringP(option.name, option.shorthand, "{}", option.usage)
			default:
				panic("invalid argument type")
			}
			if err := Cfg.BindPFlag(option.name, set.Lookup(option.name)); err != nil {
				panic(err)
			}
		}
	}

	Root.AddCommand(versionCmd)
	Root.AddCommand(assembleCmd)
}

// setConfig reads the configuration file, if there is one, and sets the log
// level
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cvfemasm: problem reading configuration file: %w", err)
		}
	}
	level, err := log.ParseLevel(Cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("cvfemasm: %w", err)
	}
	log.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cvfemasm",
	Short: "Control-volume finite element assembly.",
	Long: `cvfemasm assembles the linear systems of a transient scalar transport
equation with control-volume finite element kernels: mass, diffusion and
boundary flux, with dual volumes and nodal gradients computed on the way.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CVFEM_var' where 'var' is
the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cvfemasm v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble the scalar equation for a few time steps.",
	Long: `assemble builds or reads a mesh, registers the kernels of a scalar
transport equation and assembles it for the requested number of steps and
iterations, logging the residual norm of every assembly.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := loadRunConfig(Cfg)
		if err != nil {
			return err
		}
		_, err = Assemble(context.Background(), rc, log.StandardLogger())
		return err
	},
}
