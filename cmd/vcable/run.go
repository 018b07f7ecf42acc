package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/opd-ai/vcable/host"
	"github.com/opd-ai/vcable/samplebuffer"
	"github.com/spf13/cobra"
)

// toneHz is the frequency of the synthetic input.
const toneHz = 440

type runOptions struct {
	plugin   int
	frames   int
	blocks   int
	underrun string
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a synthetic tone through a plugin",
		Long: `Create a host instance with the configured session layout, select a plugin
and process a number of callbacks carrying a 440 Hz tone on every port.

Example:
  vcable run --plugin 1 --frames 128 --blocks 375`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTone(cmd, opts, ro)
		},
	}

	cmd.Flags().IntVarP(&ro.plugin, "plugin", "p", -1, "plugin index, 0 = off (default from configuration)")
	cmd.Flags().IntVarP(&ro.frames, "frames", "f", 128, "frames per host callback")
	cmd.Flags().IntVarP(&ro.blocks, "blocks", "b", 375, "number of host callbacks")
	cmd.Flags().StringVar(&ro.underrun, "underrun", "", "underrun policy (default from configuration)")

	return cmd
}

func runTone(cmd *cobra.Command, opts *globalOptions, ro *runOptions) error {
	if ro.frames <= 0 || ro.blocks < 0 {
		return errors.New("frames must be positive and blocks not negative")
	}

	sc := opts.cfg.Session
	cfg := host.Config{
		Name:       sc.Name,
		Ports:      sc.Ports,
		SampleSize: sc.SampleSize,
		SampleRate: sc.SampleRate,
		Plugin:     sc.Plugin,
		Policy:     opts.cfg.Underrun(),
	}
	if ro.plugin >= 0 {
		cfg.Plugin = ro.plugin
	}
	if ro.underrun != "" {
		policy, err := samplebuffer.ParsePolicy(ro.underrun)
		if err != nil {
			return err
		}
		cfg.Policy = policy
	}

	session, err := opts.openSession()
	if err != nil {
		return err
	}
	inst, err := host.New(session, cfg)
	if err != nil {
		_ = session.Release()
		return err
	}
	defer inst.Close()

	out := cmd.OutOrStdout()
	if active, ok := session.Active(); ok {
		fmt.Fprintf(out, "plugin: %d %s\n", active, session.Plugins()[active-1].Name)
	} else {
		fmt.Fprintln(out, "plugin: none, session inactive")
	}

	size := ro.frames * cfg.SampleSize
	inputs := make([][]byte, cfg.Ports)
	outputs := make([][]byte, cfg.Ports)
	for i := range inputs {
		inputs[i] = make([]byte, size)
		outputs[i] = make([]byte, size)
	}

	for n := 0; n < ro.blocks; n++ {
		for _, in := range inputs {
			fillTone(in, cfg.SampleSize, n*ro.frames, cfg.SampleRate)
		}
		for _, o := range outputs {
			clear(o)
		}
		inst.Process(inputs, outputs, ro.frames)
	}

	st := inst.Stats()
	ss := session.Stats()
	fmt.Fprintf(out, "callbacks: %d  ports: %d  frames: %d  policy: %s\n", ro.blocks, cfg.Ports, ro.frames, cfg.Policy)
	fmt.Fprintf(out, "produced: %d  underruns: %d  dropped: %d\n", st.Produced, st.Underruns, st.Dropped)
	fmt.Fprintf(out, "dispatched: %d  faults: %d\n", ss.Dispatched, ss.Faults)

	return nil
}

// fillTone writes a sine wave starting at frame offset into buf. 16-bit
// integer and 32-bit float samples carry the tone; other widths carry a
// byte ramp.
func fillTone(buf []byte, sampleSize, offset int, sampleRate uint32) {
	step := 2 * math.Pi * toneHz / float64(sampleRate)
	frames := len(buf) / sampleSize

	for i := 0; i < frames; i++ {
		v := 0.5 * math.Sin(step*float64(offset+i))
		frame := buf[i*sampleSize : (i+1)*sampleSize]
		switch sampleSize {
		case 2:
			binary.LittleEndian.PutUint16(frame, uint16(int16(v*math.MaxInt16)))
		case 4:
			binary.LittleEndian.PutUint32(frame, math.Float32bits(float32(v)))
		default:
			for j := range frame {
				frame[j] = byte(offset + i)
			}
		}
	}
}
