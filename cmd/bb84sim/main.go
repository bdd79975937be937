// bb84sim runs the BB84 key distribution protocol step by step, either
// interactively in the terminal or headless, printing the resulting metrics.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/store"
	"github.com/alan-christopher/bb84sim/internal/config"
	"github.com/alan-christopher/bb84sim/tui"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("bb84sim failed")
	}
}

type options struct {
	tui     bool
	imp     string
	export  string
	list    bool
	toStep  int
	events  bool
	sets    []string
	cfg     config.Config
	logger  *logrus.Logger
	session string
}

func parse(args []string) (*options, error) {
	fs := flag.NewFlagSet("bb84sim", flag.ContinueOnError)
	o := &options{}
	cf := config.RegisterFlags(fs)
	fs.BoolVar(&o.tui, "tui", false, "Run the interactive terminal UI")
	fs.StringVar(&o.imp, "import", "", "Restore a snapshot file (.json or .pb) before running")
	fs.StringVar(&o.export, "export", "", "Write a snapshot file when done; the extension picks the format")
	fs.BoolVar(&o.list, "list", false, "List the snapshots in --db and exit")
	fs.IntVar(&o.toStep, "step", bb84.StepKey, "Step to run to in headless mode")
	fs.BoolVar(&o.events, "events", false, "Print the event log in headless mode")
	fs.StringSliceVar(&o.sets, "set", nil, "key=value config changes applied to the engine after restoring, e.g. --set extractor=toeplitz")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := cf.Resolve()
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	o.session = cfg.Store.Session
	if o.logger, err = cfg.Log.Logger(); err != nil {
		return nil, err
	}
	if o.toStep < 0 || o.toStep >= bb84.NumSteps {
		return nil, fmt.Errorf("--step must be in [0, %d], got %d", bb84.NumSteps-1, o.toStep)
	}
	return o, nil
}

func run(args []string, out io.Writer) error {
	o, err := parse(args)
	if err != nil {
		return err
	}
	log := o.logger
	if o.tui {
		// Log lines would corrupt the alternate screen.
		log.SetOutput(io.Discard)
	}

	var db *store.BadgerStore
	if o.cfg.Store.DB != "" {
		db, err = store.OpenBadger(store.BadgerOpts{Dir: o.cfg.Store.DB, Logger: log})
		if err != nil {
			return err
		}
		defer db.Close()
	}
	if o.list {
		if db == nil {
			return errors.New("--list requires --db")
		}
		return listSessions(db, out)
	}

	simCfg := o.cfg.Simulation
	e, err := bb84.NewEngine(bb84.EngineOpts{Config: &simCfg, Logger: log})
	if err != nil {
		return err
	}
	log.WithField("session", e.Session()).Debug("Engine created")

	if err := restore(e, o, db); err != nil {
		return err
	}
	for _, kv := range o.sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set wants key=value, got %q", kv)
		}
		if err := e.ApplyConfigChange(k, v); err != nil {
			return err
		}
	}

	policy, err := o.cfg.Eve.Policy()
	if err != nil {
		return err
	}
	save := func(snap bb84.Snapshot) error {
		if db == nil {
			return nil
		}
		return db.Save(o.session, snap)
	}

	if o.tui {
		return tui.Run(tui.Options{
			Engine:     e,
			Policy:     policy,
			Fraction:   o.cfg.Eve.Fraction,
			ExportPath: o.export,
			Save:       save,
		})
	}

	runErr := headless(e, o, policy)
	if runErr != nil && !errors.Is(runErr, bb84.ErrAborted) {
		return runErr
	}
	printMetrics(out, e.Metrics())
	if o.events {
		printEvents(out, e.Events())
	}
	snap := e.Snapshot()
	if o.export != "" {
		if err := store.WriteFile(o.export, snap); err != nil {
			return err
		}
		log.WithField("path", o.export).Info("Exported snapshot")
	}
	return save(snap)
}

// restore loads the starting state: an explicit --import wins over the
// session stored in --db.
func restore(e *bb84.Engine, o *options, db *store.BadgerStore) error {
	switch {
	case o.imp != "":
		snap, err := store.ReadFile(o.imp)
		if err != nil {
			return err
		}
		return e.Restore(snap)
	case db != nil:
		snap, err := db.Load(o.session)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.Restore(snap)
	}
	return nil
}

// headless drives e to o.toStep, letting Eve attack on the way through the
// channel if configured.
func headless(e *bb84.Engine, o *options, policy eve.Policy) error {
	fraction := o.cfg.Eve.Fraction
	if fraction > 0 && e.CurrentStep() <= bb84.StepChannel && o.toStep >= bb84.StepChannel {
		if err := e.GoToStep(bb84.StepChannel); err != nil {
			return err
		}
		n, err := e.AttackFraction(fraction, policy)
		if err != nil {
			return err
		}
		o.logger.WithFields(logrus.Fields{"qubits": n, "basis": policy.String()}).Info("Eve attacked the channel")
	}
	return e.GoToStep(o.toStep)
}

func printMetrics(w io.Writer, m bb84.Metrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Step\t%d (%s)\n", m.CurrentStep, bb84.StepName(m.CurrentStep))
	fmt.Fprintf(tw, "Qubits sent\t%d\n", m.TotalQubits)
	fmt.Fprintf(tw, "Intercepted\t%d\n", m.EveAttackedCount)
	fmt.Fprintf(tw, "Sifted bits\t%d\n", m.SiftedBits)
	fmt.Fprintf(tw, "Check errors\t%d/%d\n", m.CheckErrors, m.CheckLength)
	fmt.Fprintf(tw, "QBER\t%.2f%%\n", m.QBER)
	fmt.Fprintf(tw, "P(detect Eve)\t%.4f\n", m.DetectionProbability)
	fmt.Fprintf(tw, "Parities leaked\t%d\n", m.ParityLeak)
	fmt.Fprintf(tw, "Forced corrections\t%d\n", m.ForcedCorrections)
	fmt.Fprintf(tw, "Final key bits\t%d\n", m.KeySize)
	if m.FinalKeyHex != "" {
		fmt.Fprintf(tw, "Alice key\t%s\n", m.FinalKeyHex)
		fmt.Fprintf(tw, "Bob key\t%s\n", m.BobFinalKeyHex)
		fmt.Fprintf(tw, "Keys match\t%t\n", m.KeysMatch)
		fmt.Fprintf(tw, "Compression\t%.3f\n", m.CompressionRatio)
		fmt.Fprintf(tw, "Efficiency\t%.3f\n", m.Efficiency)
	}
	if m.Aborted {
		fmt.Fprintf(tw, "Aborted\t%s\n", m.AbortReason)
	}
	tw.Flush()
}

func printEvents(w io.Writer, evs []bb84.Event) {
	for _, ev := range evs {
		fmt.Fprintf(w, "%s [%s] step %d: %s\n", ev.Time.Format("15:04:05.000"), ev.Level, ev.Step, ev.Message)
	}
}

func listSessions(db *store.BadgerStore, w io.Writer) error {
	entries, err := db.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTEP\tN\tKEY BITS\tABORTED\tSAVED")
	for _, en := range entries {
		h := en.Header
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%t\t%s\n", en.Name, h.CurrentStep, h.N, h.KeyBits, h.Aborted, h.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
