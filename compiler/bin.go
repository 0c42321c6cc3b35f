package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"

	. "github.com/ZenLiuCN/cjit"
	"github.com/ZenLiuCN/fn"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"github.com/xyproto/env/v2"
)

func main() {
	app := cli.NewApp()
	app.Usage = "C just in time compiler"
	app.Name = "Compiler"
	app.Description = "compile C sources into the running process and call their functions"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "yaml configuration file",
			EnvVars: []string{"CJIT_CONFIG"},
		},
	}
	translation := []cli.Flag{
		&cli.StringSliceFlag{Name: "include", Aliases: []string{"I"}, Usage: "additional system include directory"},
		&cli.StringSliceFlag{Name: "libpath", Aliases: []string{"L"}, Usage: "library search directory"},
		&cli.StringSliceFlag{Name: "lib", Aliases: []string{"l"}, Usage: "library to load, as lib<name>.so"},
		&cli.BoolFlag{Name: "g", Usage: "compile without optimization"},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Action: run,
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "func", Aliases: []string{"f"}, Value: "main", Usage: "function to call"},
			}, translation...),
			Args:      true,
			ArgsUsage: "<source.c> [integer arguments...]",
			Usage:     "translate a C source and call one of its functions with integer arguments",
		},
		{
			Name:      "symbols",
			Action:    symbols,
			Flags:     translation,
			Args:      true,
			ArgsUsage: "<source.c>...",
			Usage:     "translate C sources in order and display their exported symbols",
		},
		{
			Name:      "batch",
			Action:    batch,
			Flags:     translation,
			Args:      true,
			ArgsUsage: "<source.c>...",
			Usage:     "translate every C source independently and report failures",
		},
		{
			Name:      "inspect",
			Action:    inspect,
			Args:      true,
			ArgsUsage: "<object.o>...",
			Usage:     "display defined and undefined symbols of relocatable object files",
		},
		{
			Name:   "prepare",
			Action: prepare,
			Usage:  "prepare go sdk to build an executable hosting the JIT",
		},
		{
			Name:   "clean",
			Action: clean,
			Usage:  "restore go sdk changed by prepare",
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func config(ctx *cli.Context) (cfg Config, err error) {
	if p := ctx.String("config"); p != "" {
		if cfg, err = LoadConfig(p); err != nil {
			return
		}
	} else {
		cfg = DefaultConfig()
	}
	cfg.Debug = cfg.Debug || ctx.Bool("debug")
	return
}

func open(ctx *cli.Context) (*JIT, error) {
	cfg, err := config(ctx)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

func request(ctx *cli.Context, file string) (Request, error) {
	return ReadRequest(file, ctx.StringSlice("include"), ctx.StringSlice("libpath"), ctx.StringSlice("lib"), ctx.Bool("g"))
}

func run(ctx *cli.Context) (err error) {
	args := ctx.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("missing source file")
	}
	values := make([]uintptr, 0, len(args)-1)
	for _, a := range args[1:] {
		var v int64
		if v, err = strconv.ParseInt(a, 0, 64); err != nil {
			return fmt.Errorf("argument %q: %w", a, err)
		}
		values = append(values, uintptr(v))
	}
	j, err := open(ctx)
	if err != nil {
		return
	}
	defer fn.IgnoreClose(j)
	req, err := request(ctx, args[0])
	if err != nil {
		return
	}
	h, err := j.Translate(req)
	if err != nil {
		return
	}
	s, err := j.GetFunction(h, ctx.String("func"))
	if err != nil {
		return
	}
	r := Call(s, values...)
	fmt.Printf("%s = %d\n", ctx.String("func"), int64(r))
	return
}

func symbols(ctx *cli.Context) (err error) {
	files := ctx.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("missing source files")
	}
	j, err := open(ctx)
	if err != nil {
		return
	}
	defer fn.IgnoreClose(j)
	for _, file := range files {
		var req Request
		if req, err = request(ctx, file); err != nil {
			return
		}
		var h Handle
		if h, err = j.Translate(req); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		var names []string
		if names, err = j.Symbols(h); err != nil {
			return
		}
		fmt.Printf("%s (unit %d)\n", file, h)
		for _, name := range names {
			fmt.Printf("\t%s\n", name)
		}
	}
	return
}

func batch(ctx *cli.Context) (err error) {
	files := ctx.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("missing source files")
	}
	j, err := open(ctx)
	if err != nil {
		return
	}
	defer fn.IgnoreClose(j)
	pb := progressbar.Default(int64(len(files)), "translate")
	defer fn.IgnoreClose(pb)
	var failed []error
	for _, file := range files {
		pb.Describe(file)
		req, err := request(ctx, file)
		if err == nil {
			var h Handle
			if h, err = j.Translate(req); err == nil {
				err = j.Free(h)
			}
		}
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", file, err))
		}
		_ = pb.Add(1)
	}
	if len(failed) > 0 {
		log.Printf("%d of %d sources failed", len(failed), len(files))
		return errors.Join(failed...)
	}
	return
}

func inspect(ctx *cli.Context) (err error) {
	var infos Infos
	for _, s := range ctx.Args().Slice() {
		var v *Info
		if v, err = InspectFile(s); err != nil {
			return
		}
		infos = append(infos, v)
	}
	log.Printf("\n%s", infos.String())
	return
}

func goroot() string {
	return env.Str("GOROOT", runtime.GOROOT())
}

func clean(ctx *cli.Context) error {
	return CleanSDK(goroot(), ctx.Bool("debug"))
}

func prepare(ctx *cli.Context) error {
	return PrepareSDK(goroot(), ctx.Bool("debug"))
}
