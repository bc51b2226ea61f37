package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/pogilon/DAISY-BP/daisy"
	"github.com/pogilon/DAISY-BP/ocl"
	"github.com/pogilon/DAISY-BP/sources"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

//Version is the released version string of daisy-bp
var Version = "0.1-Dev"

//usableDevices returns the indices of the available devices that are not excluded
func usableDevices(devices []ocl.DeviceInfo, excluded string) []int {
	indices := make([]int, 0, len(devices))
	for _, device := range devices {
		if !device.Available || ocl.DeviceExcluded(device.Index, excluded) {
			continue
		}
		indices = append(indices, device.Index)
	}
	return indices
}

//buildSource turns the positional arguments and urls into a single source
func buildSource(paths []string, urls []string) (sources.Source, error) {
	var chained []sources.Source
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		if len(files) > 0 {
			chained = append(chained, sources.NewFileSource(files...))
			files = nil
		}
		dir, err := sources.NewDirSource(path)
		if err != nil {
			return nil, err
		}
		chained = append(chained, dir)
	}
	if len(files) > 0 {
		chained = append(chained, sources.NewFileSource(files...))
	}
	if len(urls) > 0 {
		chained = append(chained, sources.NewHTTPSource(urls...))
	}
	if len(chained) == 0 {
		return nil, xerrors.New("no images given")
	}
	return sources.Chain(chained...), nil
}

// errDuplicateName is returned when two frames would be written to the same file
var errDuplicateName = xerrors.New("duplicate frame name")

//writeResult stores the descriptors of a result as <dir>/<name>.dsy
func writeResult(dir string, result *daisy.Result) (err error) {
	f, err := os.Create(filepath.Join(dir, result.Job.Name+".dsy"))
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); err == nil {
			err = e
		}
	}()
	return daisy.WriteDescriptors(f, result.Descriptors)
}

func printDevices(devices []ocl.DeviceInfo) {
	for _, device := range devices {
		fmt.Printf("DEV #%d: %s - %s - %s (%d compute units, %d MB)", device.Index, device.Platform, device.Type, device.Name, device.ComputeUnits, device.GlobalMemory>>20)
		if !device.Available {
			fmt.Print(" unavailable")
		}
		fmt.Println()
	}
}

func printReports(reports <-chan *daisy.Report) {
	rates := make(map[int]float64)
	for report := range reports {
		rates[report.DeviceID] = report.MegapixelsPerSecond
		ids := make([]int, 0, len(rates))
		for id := range rates {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		fmt.Print("\r")
		var total float64
		for _, id := range ids {
			fmt.Printf("%d-%.1f ", id, rates[id])
			total += rates[id]
		}
		fmt.Printf("Total: %.1f MP/s  ", total)
	}
	if len(rates) > 0 {
		fmt.Println()
	}
}

func run(ctx context.Context, cfg Config, deviceIDs []int, src sources.Source) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return err
	}

	jobs := make(chan *daisy.Job, len(deviceIDs))
	results := make(chan *daisy.Result, len(deviceIDs))
	reports := make(chan *daisy.Report, len(deviceIDs)*10)
	dispatcher := &daisy.Dispatcher{
		Devices:     deviceIDs,
		UseCPU:      cfg.Device.CPU,
		InOrderOnly: !cfg.Device.OutOfOrder,
		Params:      cfg.Daisy,
		Reference:   cfg.Device.Reference,
		Reports:     reports,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sources.Feed(ctx, src, jobs)
	})
	g.Go(func() error {
		defer close(results)
		defer close(reports)
		return dispatcher.Run(ctx, jobs, results)
	})
	g.Go(func() error {
		written := make(map[string]bool)
		for result := range results {
			if written[result.Job.Name] {
				return xerrors.Errorf("%s.dsy: %w", filepath.Join(cfg.Output.Dir, result.Job.Name), errDuplicateName)
			}
			written[result.Job.Name] = true
			if err := writeResult(cfg.Output.Dir, result); err != nil {
				return err
			}
		}
		return nil
	})

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printReports(reports)
	}()
	err := g.Wait()
	<-printed
	return err
}

func main() {
	cfg, opts, args, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Println(err)
		os.Exit(2)
	}

	if opts.printVersion {
		fmt.Println("daisy-bp version", Version)
		os.Exit(0)
	}

	if opts.listDevices {
		devices, err := ocl.ListDevices(cfg.Device.CPU)
		if err != nil {
			log.Println(err)
			os.Exit(1)
		}
		printDevices(devices)
		os.Exit(0)
	}

	var deviceIDs []int
	if cfg.Device.Reference {
		for i := 0; i < runtime.NumCPU(); i++ {
			deviceIDs = append(deviceIDs, i)
		}
		log.Println("Using the reference implementation on", len(deviceIDs), "worker(s)")
	} else {
		devices, err := ocl.ListDevices(cfg.Device.CPU)
		if err != nil {
			log.Println(err)
			os.Exit(1)
		}
		log.Println(len(devices), "device(s) found")
		deviceIDs = usableDevices(devices, cfg.Device.Exclude)
	}
	if len(deviceIDs) == 0 {
		log.Println("No suitable opencl devices found")
		os.Exit(1)
	}

	src, err := buildSource(args, opts.urls)
	if err != nil {
		log.Println(err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err = run(ctx, cfg, deviceIDs, src); err != nil {
		log.Println("ERROR -", err)
		os.Exit(1)
	}
}
