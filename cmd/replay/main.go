package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	persistlog "beltway.ai/internal/persistence/log"
	"beltway.ai/internal/sim/catalogs"
	"beltway.ai/internal/sim/tuning"
	"beltway.ai/internal/sim/world"
)

func main() {
	var (
		ticksDir   = flag.String("ticks", "", "tick log dir containing ticks-*.jsonl.zst")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		order      = flag.String("order", string(world.OrderIndex), "node advance order used by the recorded run")
		seed       = flag.Int64("seed", 1337, "shuffle seed used by the recorded run")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -ticks")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if errors.Is(err, fs.ErrNotExist) {
		tune, err = tuning.Defaults(), nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	w, err := world.New(world.WorldConfig{
		ID:         *worldID,
		TickRateHz: tune.TickRateHz,
		Order:      world.AdvanceOrder(*order),
		Seed:       *seed,

		CommandWindowTicks: tune.RateLimits.CommandWindowTicks,
		CommandMax:         tune.RateLimits.CommandMax,
	}, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListFiles(*ticksDir, "ticks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list tick logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick logs found in", *ticksDir)
		os.Exit(1)
	}

	res, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	tot := w.Totals()
	fmt.Printf("replay ok: checked=%d ticks last=%d nodes=%d emitted=%d injected=%d sunk=%d dropped=%d\n",
		res.checked, res.last, w.NodeCount(), tot.Emitted, tot.Injected, tot.Sunk, tot.Dropped)
	if res.restarted {
		fmt.Println("note: log continues with a restarted run; stopped at the restart")
	}
}

type replayResult struct {
	checked   uint64
	last      uint64
	restarted bool
}

var errStop = errors.New("stop")

// replay re-applies every recorded command batch from tick 0 and compares state digests.
func replay(w *world.World, files []string, verifyFrom, toTick uint64) (replayResult, error) {
	var res replayResult
	for _, path := range files {
		err := persistlog.ScanTicks(path, func(entry world.TickLogEntry) error {
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			if entry.Tick < w.CurrentTick() {
				// A new server run writing into the same directory starts again at tick 0.
				res.restarted = true
				return errStop
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick gap: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
			}

			tick, gotDigest := w.StepOnce(entry.Commands)
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
			}
			res.last = tick
			if tick >= verifyFrom {
				res.checked++
				if gotDigest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
