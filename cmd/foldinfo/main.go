// Command foldinfo runs 3D convolution strategies on a ramp volume and
// prints timing and accuracy against the host reference.
//
// Usage:
//
//	foldinfo [flags] [variant ...]
//
// Without arguments it runs every variant.
//
// Examples:
//
//	foldinfo
//	foldinfo -n 64 -kernel 21x3x11 tiled-buffer spectral
//	foldinfo -batch 10 -fused direct-buffer
//	foldinfo -device webgpu -weights horizontal
//	foldinfo -list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"github.com/cwbudde/algo-fold/conv"
	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/device/host"
	"github.com/cwbudde/algo-fold/device/webgpu"
	"github.com/cwbudde/algo-fold/internal/testutil"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

type variant struct {
	name string
	opts []conv.Option
	// padded variants take the zero-padded image.
	padded bool
}

var variants = []variant{
	{"direct-buffer", []conv.Option{conv.WithBoundary(conv.BoundaryPadded)}, true},
	{"direct-image", []conv.Option{conv.WithAddressing(conv.Image), conv.WithBoundary(conv.BoundaryZero)}, false},
	{"tiled-buffer", []conv.Option{conv.WithStaging(conv.Tiled), conv.WithBoundary(conv.BoundaryPadded)}, true},
	{"tiled-image", []conv.Option{conv.WithStaging(conv.Tiled), conv.WithAddressing(conv.Image), conv.WithBoundary(conv.BoundaryZero)}, false},
	{"spectral", []conv.Option{conv.WithAlgorithm(conv.Spectral), conv.WithBoundary(conv.BoundaryPadded)}, true},
}

func main() {
	n := flag.Int("n", 32, "image edge length")
	kshape := flag.String("kernel", "5x9x13", "kernel shape XxYxZ, odd sizes")
	weights := flag.String("weights", testutil.All1, "kernel weights: "+strings.Join(testutil.KernelNames, ", "))
	batch := flag.Int("batch", 1, "batch size")
	fused := flag.Bool("fused", false, "run the batch as one launch")
	devName := flag.String("device", "host", "accelerator: host or webgpu")
	workers := flag.Int("workers", 0, "host device workers (0 = GOMAXPROCS)")
	list := flag.Bool("list", false, "list available variants")
	verbose := flag.Bool("v", false, "log device details to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: foldinfo [flags] [variant ...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs 3D convolution strategies on an n^3 ramp image and compares\n")
		fmt.Fprintf(os.Stderr, "each result with the host reference.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  foldinfo -n 64 -kernel 21x3x11 tiled-buffer spectral\n")
		fmt.Fprintf(os.Stderr, "  foldinfo -batch 10 -fused direct-buffer\n")
		fmt.Fprintf(os.Stderr, "  foldinfo -list\n")
	}
	flag.Parse()

	if *list {
		printList()
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ks, err := parseShape(*kshape)
	if err != nil {
		fatal(logger, "invalid -kernel", err)
	}
	if *n <= 0 || *batch <= 0 {
		fatal(logger, "invalid size", fmt.Errorf("-n %d -batch %d must be positive", *n, *batch))
	}
	if !lo.Contains(testutil.KernelNames, *weights) {
		fatal(logger, "invalid -weights", fmt.Errorf("unknown weights %q", *weights))
	}

	selected, unknown := resolveVariants(flag.Args())
	for _, name := range unknown {
		fmt.Fprintf(os.Stderr, "warning: unknown variant %q (use -list to see available)\n", name)
	}
	if len(selected) == 0 {
		fmt.Fprintf(os.Stderr, "error: no matching variants\n")
		os.Exit(1)
	}

	dev, err := openDevice(*devName, *workers, logger)
	if err != nil {
		fatal(logger, "open device", err)
	}
	defer dev.Close()

	f := testutil.NewAsymFixture(ks[0], ks[1], ks[2], *n)
	r := runner{
		dev:     dev,
		fixture: f,
		weights: *weights,
		batch:   *batch,
		fused:   *fused,
	}
	printAnalysis(r, selected, logger)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}

func printList() {
	names := lo.Map(variants, func(v variant, _ int) string { return v.name })
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

// parseShape parses "XxYxZ".
func parseShape(s string) (volume.Shape, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	dims := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return volume.Shape{}, fmt.Errorf("axis %d: %w", i, err)
		}
		dims[i] = v
	}
	shape, err := volume.ShapeOf(dims)
	if err != nil {
		return volume.Shape{}, err
	}
	if _, err := kernel.Zero(shape); err != nil {
		return volume.Shape{}, err
	}
	return shape, nil
}

// resolveVariants returns the requested variants in table order, or all of
// them when names is empty, and the names that matched nothing.
func resolveVariants(names []string) ([]variant, []string) {
	if len(names) == 0 {
		return variants, nil
	}
	names = lo.Map(names, func(n string, _ int) string { return strings.ToLower(strings.TrimSpace(n)) })
	known := lo.Map(variants, func(v variant, _ int) string { return v.name })
	selected := lo.Filter(variants, func(v variant, _ int) bool { return lo.Contains(names, v.name) })
	return selected, lo.Without(names, known...)
}

func openDevice(name string, workers int, logger *slog.Logger) (device.Device, error) {
	switch name {
	case "host":
		return host.New(host.WithWorkers(workers)), nil
	case "webgpu":
		return webgpu.New(webgpu.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown device %q", name)
	}
}

type runner struct {
	dev     device.Device
	fixture *testutil.AsymFixture
	weights string
	batch   int
	fused   bool
}

type result struct {
	elapsed  time.Duration
	sum      float64
	distance float64
	failed   int
}

func (r runner) run(ctx context.Context, v variant) (result, error) {
	in, want := r.fixture.Image, r.fixture.FoldedImage(r.weights)
	if v.padded {
		in, want = r.fixture.Padded, r.fixture.Folded(r.weights)
	}
	s, err := conv.New(r.dev, v.opts...)
	if err != nil {
		return result{}, err
	}
	ins := lo.Times(r.batch, func(int) *volume.Volume { return in })

	start := time.Now()
	outs, err := conv.NewBatch(s, conv.WithFused(r.fused)).Convolve(ctx, ins, r.fixture.Kernels[r.weights])
	res := result{elapsed: time.Since(start)}

	var be *conv.BatchError
	switch {
	case errors.As(err, &be):
		res.failed = len(be.Failed())
	case err != nil:
		return result{}, err
	}
	done := lo.Compact(outs)
	if len(done) == 0 {
		return res, nil
	}
	res.sum = volume.Sum(done[0])
	res.distance = lo.Max(lo.Map(done, func(out *volume.Volume, _ int) float64 {
		d, _ := volume.L2Distance(out, want)
		return d
	}))
	return res, nil
}

func printAnalysis(r runner, selected []variant, logger *slog.Logger) {
	ctx := context.Background()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Variant\tDevice\tImage\tKernel\tBatch\tTime\tPer Member\tSum\tL2 vs Fold\tFailed\n"); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: failed to write output header: %v\n", err)
		return
	}
	if _, err := fmt.Fprintf(tw, "-------\t------\t-----\t------\t-----\t----\t----------\t---\t----------\t------\n"); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: failed to write output header: %v\n", err)
		return
	}

	image := r.fixture.Image.Shape()
	ks := r.fixture.Kernels[r.weights].Shape()
	for _, v := range selected {
		res, err := r.run(ctx, v)
		if err != nil {
			logger.Error("convolution failed", "variant", v.name, "err", err)
			continue
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%v\t%v\t%d\t%v\t%v\t%.6g\t%.3g\t%d\n",
			v.name,
			r.dev.Name(),
			image,
			ks,
			r.batch,
			res.elapsed.Round(time.Microsecond),
			(res.elapsed / time.Duration(r.batch)).Round(time.Microsecond),
			res.sum,
			res.distance,
			res.failed,
		); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: failed to write output row: %v\n", err)
			return
		}
	}
	if err := tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}
