// bench.go runs a batch of simulated BB84 sessions for each entry in the
// cartesian product of a collection of tuning parameters, e.g. key size and the
// fraction of qubits Eve intercepts, and outputs a CSV of relevant statistics
// for each combination, e.g. abort rate and mean final key length.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/eve"
)

var (
	n         = flag.IntSlice("n", []int{bb84.DefaultN}, "Target sifted key sizes.")
	delta     = flag.Float64Slice("delta", []float64{bb84.DefaultDelta}, "Oversampling factors.")
	eveFrac   = flag.Float64Slice("eveFraction", []float64{0, 0.1, 0.5, 1}, "Fractions of channel qubits Eve intercepts.")
	maxErrors = flag.IntSlice("maxErrors", []int{bb84.DefaultMaxEveCheckErrors}, "Check errors tolerated before aborting.")
	trials    = flag.Int("trials", 100, "Sessions to simulate per parameterization.")
	seed      = flag.Int64("seed", 1, "Base PRNG seed; trial i of every row uses seed+i.")
	extractor = flag.String("extractor", bb84.ExtractorFold, "Privacy amplification extractor.")
)

var (
	inputs  = []string{"n", "delta", "eveFraction", "maxErrors"}
	columns = []string{"N", "Delta", "EveFraction", "MaxErrors", "Trials",
		"SiftAborts", "CheckAborts", "AbortRate", "MeanQBER", "StdQBER",
		"MeanKeyBits", "MeanParityLeak", "DetectionProbability"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	N           int
	Delta       float64
	EveFraction float64
	MaxErrors   int
	Trials      int

	// Fields corresponding to experiment results
	SiftAborts           int
	CheckAborts          int
	AbortRate            float64
	MeanQBER, StdQBER    float64
	MeanKeyBits          float64
	MeanParityLeak       float64
	DetectionProbability float64
}

func main() {
	flag.Parse()
	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(inp))
	}
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			N:           args[inpIndex("n")].(int),
			Delta:       args[inpIndex("delta")].(float64),
			EveFraction: args[inpIndex("eveFraction")].(float64),
			MaxErrors:   args[inpIndex("maxErrors")].(int),
			Trials:      *trials,
		}
		if err := bench(exp); err != nil {
			log.Printf("Benching %+v: %v", exp, err)
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			log.Fatalf("BUG: could not fill in line template: %v", err)
		}
	}, args)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func bench(exp *Experiment) error {
	cfg := bb84.DefaultConfig()
	cfg.N = exp.N
	cfg.Delta = exp.Delta
	cfg.MaxEveCheckErrors = exp.MaxErrors
	cfg.Extractor = *extractor
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	var qbers, keyBits, leaks []float64
	for i := 0; i < exp.Trials; i++ {
		e, err := bb84.NewEngine(bb84.EngineOpts{
			Config: &cfg,
			Rand:   rand.New(rand.NewSource(*seed + int64(i))),
			Logger: quiet,
		})
		if err != nil {
			return err
		}
		if err := e.GoToStep(bb84.StepChannel); err != nil {
			return err
		}
		if exp.EveFraction > 0 {
			if _, err := e.AttackFraction(exp.EveFraction, eve.RandomBasis()); err != nil {
				return err
			}
			if i == 0 {
				exp.DetectionProbability = e.Metrics().DetectionProbability
			}
		}
		err = e.GoToStep(bb84.StepKey)
		m := e.Metrics()
		switch {
		case errors.Is(err, bb84.ErrAborted):
			if e.CurrentStep() == bb84.StepSift {
				exp.SiftAborts++
				continue
			}
			exp.CheckAborts++
		case err != nil:
			return fmt.Errorf("trial %d: %w", i, err)
		default:
			keyBits = append(keyBits, float64(m.KeySize))
			leaks = append(leaks, float64(m.ParityLeak))
		}
		qbers = append(qbers, m.QBER)
	}
	if exp.Trials > 0 {
		exp.AbortRate = float64(exp.SiftAborts+exp.CheckAborts) / float64(exp.Trials)
	}
	if len(qbers) > 0 {
		exp.MeanQBER, exp.StdQBER = stat.MeanStdDev(qbers, nil)
	}
	if len(keyBits) > 0 {
		exp.MeanKeyBits = stat.Mean(keyBits, nil)
		exp.MeanParityLeak = stat.Mean(leaks, nil)
	}
	return nil
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		log.Fatalf("Unknown type for input %s", name)
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
