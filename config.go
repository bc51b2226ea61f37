package main

import (
	"flag"

	"github.com/BurntSushi/toml"
	"github.com/pogilon/DAISY-BP/daisy"
	"golang.org/x/xerrors"
)

//Config is the configuration file layout, flags that are set explicitly override it
type Config struct {
	Device DeviceConfig `toml:"device"`
	Daisy  daisy.Params `toml:"daisy"`
	Output OutputConfig `toml:"output"`
}

type DeviceConfig struct {
	CPU        bool   `toml:"cpu"`
	Exclude    string `toml:"exclude"`
	OutOfOrder bool   `toml:"outoforder"`
	Reference  bool   `toml:"reference"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

func defaultConfig() Config {
	return Config{
		Device: DeviceConfig{OutOfOrder: true},
		Daisy:  daisy.DefaultParams(),
		Output: OutputConfig{Dir: "."},
	}
}

//loadConfig reads the toml file at path on top of the defaults, an empty path returns the defaults
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, xerrors.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}

//options are the command line flags
type options struct {
	printVersion bool
	listDevices  bool
	configFile   string
	useCPU       bool
	excluded     string
	outputDir    string
	step         int
	reference    bool
	urls         urlList
}

type urlList []string

func (u *urlList) String() string {
	return ""
}

func (u *urlList) Set(value string) error {
	*u = append(*u, value)
	return nil
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("daisy-bp", flag.ContinueOnError)
	fs.BoolVar(&opts.printVersion, "v", false, "Show version and exit")
	fs.BoolVar(&opts.listDevices, "l", false, "List the opencl devices and exit")
	fs.StringVar(&opts.configFile, "config", "", "TOML configuration `file`")
	fs.BoolVar(&opts.useCPU, "cpu", false, "If set, also use CPU devices, only GPU's are used by default")
	fs.StringVar(&opts.excluded, "E", "", "Exclude devices: comma separated list of devicenumbers")
	fs.StringVar(&opts.outputDir, "o", ".", "Directory the descriptor files are written to")
	fs.IntVar(&opts.step, "step", 1, "Compute a descriptor every `n` pixels")
	fs.BoolVar(&opts.reference, "reference", false, "Compute on the CPU with the reference implementation")
	fs.Var(&opts.urls, "url", "Fetch an image over http, can be repeated")
	return fs
}

//parseConfig parses args, loads the configuration file and applies the explicitly set flags to it
func parseConfig(args []string) (Config, *options, []string, error) {
	opts := &options{}
	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, nil, err
	}
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return cfg, nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cpu":
			cfg.Device.CPU = opts.useCPU
		case "E":
			cfg.Device.Exclude = opts.excluded
		case "o":
			cfg.Output.Dir = opts.outputDir
		case "step":
			cfg.Daisy.Step = opts.step
		case "reference":
			cfg.Device.Reference = opts.reference
		}
	})
	if err = cfg.Daisy.Validate(); err != nil {
		return cfg, nil, nil, err
	}
	return cfg, opts, fs.Args(), nil
}
