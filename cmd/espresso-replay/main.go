// Command espresso-replay feeds a telemetry capture back through the router
// and state store and prints the resulting dashboard.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/espresso-dash/internal/capture"
	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/logic"
	"github.com/sweeney/espresso-dash/internal/topic"
)

func main() {
	fs := pflag.NewFlagSet("espresso-replay", pflag.ContinueOnError)
	namespace := fs.String("namespace", topic.DefaultNamespace, "topic namespace")
	deviceID := fs.String("device-id", "", "device id to accept (default: the device of the first record)")
	verbose := fs.BoolP("verbose", "v", false, "print every record")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: espresso-replay [flags] <capture.cbor>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	if err := run(fs.Arg(0), *namespace, *deviceID, *verbose, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// summary counts records by recorded outcome and by replayed result.
type summary struct {
	records  int
	recorded map[capture.Outcome]int
	applied  int
	rejected int
	skipped  int // dropped live, so never merged
}

func run(path, namespace, deviceID string, verbose bool, out io.Writer) error {
	r, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := replay(r, namespace, deviceID, verbose, out)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, display.NewRenderer().Render(res.model, res.label, true))
	fmt.Fprintf(out, "\n%d records (%d applied, %d rejected on replay, %d skipped as dropped)\n",
		res.sum.records, res.sum.applied, res.sum.rejected, res.sum.skipped)
	for _, o := range []capture.Outcome{capture.OutcomeAccepted, capture.OutcomeMalformed, capture.OutcomeRejected, capture.OutcomeDropped} {
		if n := res.sum.recorded[o]; n > 0 {
			fmt.Fprintf(out, "  recorded %-9s %d\n", o.String()+":", n)
		}
	}
	return nil
}

type replayResult struct {
	state logic.MachineState
	model display.Model
	label string
	sum   summary
}

// replay applies records in order. Time comes from the recorded
// timestamps so the shot timer reads what it read live. Records the live
// queue dropped are skipped, since the live store never saw them.
func replay(r *capture.Reader, namespace, deviceID string, verbose bool, out io.Writer) (replayResult, error) {
	var (
		router *topic.Router
		start  time.Time
		now    logic.Tick
	)
	store := logic.NewStore(func() logic.Tick { return now })
	timer := display.NewShotTimer()
	sum := summary{recorded: make(map[capture.Outcome]int)}
	label := display.InitialShotLabel

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return replayResult{}, fmt.Errorf("read record %d: %w", sum.records+1, err)
		}
		sum.records++
		sum.recorded[rec.Outcome]++

		if start.IsZero() {
			start = rec.Time
		}
		now = logic.Tick(rec.Time.Sub(start).Milliseconds())

		if rec.Outcome == capture.OutcomeDropped {
			sum.skipped++
			if verbose {
				fmt.Fprintf(out, "%8dms %-40s %q skipped: dropped live\n", now, rec.Topic, rec.Payload)
			}
			continue
		}

		if router == nil {
			id := deviceID
			if id == "" {
				id = deviceFromTopic(rec.Topic)
			}
			router = topic.NewRouter(namespace, id)
		}

		ev, err := router.Parse(rec.Topic, rec.Payload)
		if err != nil {
			sum.rejected++
			if verbose {
				fmt.Fprintf(out, "%8dms %-40s %q rejected: %v\n", now, rec.Topic, rec.Payload, err)
			}
			continue
		}
		store.Merge(ev)
		sum.applied++
		label = timer.Label(store.Snapshot(), now)
		if verbose {
			fmt.Fprintf(out, "%8dms %-40s %q -> %s\n", now, rec.Topic, rec.Payload, display.StatusOf(store.Snapshot()))
		}
	}

	state := store.Snapshot()
	return replayResult{
		state: state,
		model: display.Project(state),
		label: label,
		sum:   sum,
	}, nil
}

// deviceFromTopic returns the device segment of <ns>/<device>/<key>/state.
func deviceFromTopic(t string) string {
	parts := strings.Split(t, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
