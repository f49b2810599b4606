package main

import (
	"fmt"
	"strconv"

	"github.com/jt05610/syringe"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the pump's direction, rate, diameter and volumes",
	Args:  cobra.NoArgs,
	RunE: withPump(func(p syringe.Pump, _ []string) error {
		dir, err := p.Direction()
		if err != nil {
			return err
		}
		rate, unit, err := p.Rate()
		if err != nil {
			return err
		}
		dia, err := p.Diameter()
		if err != nil {
			return err
		}
		target, err := p.TargetVolume()
		if err != nil {
			return err
		}
		vol, err := p.Volume()
		if err != nil {
			return err
		}
		fmt.Printf("direction: %s\nrate: %g %s\ndiameter: %g mm\ntarget volume: %g uL\naccumulated volume: %g uL\n",
			dir, rate, unit, dia, target, vol)
		return nil
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the pump in its current direction",
	Args:  cobra.NoArgs,
	RunE: withPump(func(p syringe.Pump, _ []string) error {
		return p.Start()
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop the pump",
	Args:  cobra.NoArgs,
	RunE: withPump(func(p syringe.Pump, _ []string) error {
		return p.Stop()
	}),
}

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "reverse the flow direction",
	Args:  cobra.NoArgs,
	RunE: withPump(func(p syringe.Pump, _ []string) error {
		return p.Reverse()
	}),
}

var rateCmd = &cobra.Command{
	Use:   "rate <value> <unit>",
	Short: "set the pumping rate, e.g. `rate 2.5 uL/min`",
	Args:  cobra.ExactArgs(2),
	RunE: withPump(func(p syringe.Pump, args []string) error {
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("rate %q is not a number", args[0])
		}
		unit, err := syringe.ParseUnit(args[1])
		if err != nil {
			return err
		}
		return p.SetRate(value, unit)
	}),
}

var diameterCmd = &cobra.Command{
	Use:   "diameter <mm>",
	Short: "set the syringe diameter in millimeters",
	Args:  cobra.ExactArgs(1),
	RunE: withPump(func(p syringe.Pump, args []string) error {
		mm, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("diameter %q is not a number", args[0])
		}
		return p.SetDiameter(mm)
	}),
}

var targetCmd = &cobra.Command{
	Use:   "target <uL>|clear",
	Short: "set or clear the target volume in microliters",
	Args:  cobra.ExactArgs(1),
	RunE: withPump(func(p syringe.Pump, args []string) error {
		if args[0] == "clear" {
			return p.ClearTargetVolume()
		}
		uL, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("target volume %q is not a number", args[0])
		}
		return p.SetTargetVolume(uL)
	}),
}

var (
	bolusRate float64
	bolusUnit string
)

var bolusCmd = &cobra.Command{
	Use:   "bolus <uL>",
	Short: "deliver a discrete dose and restore the previous pump state",
	Args:  cobra.ExactArgs(1),
	RunE: withPump(func(p syringe.Pump, args []string) error {
		uL, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bolus volume %q is not a number", args[0])
		}
		unit, err := syringe.ParseUnit(bolusUnit)
		if err != nil {
			return err
		}
		w, err := syringe.Bolus(p, uL, bolusRate, unit, 0, newLogger())
		if err != nil {
			return err
		}
		fmt.Printf("delivering %g uL at %g %s\n", uL, bolusRate, unit)
		return w.Wait()
	}),
}

var beepCmd = &cobra.Command{
	Use:   "beep",
	Short: "sound the pump's buzzer, if it has one",
	Args:  cobra.NoArgs,
	RunE: withPump(func(p syringe.Pump, _ []string) error {
		b, ok := p.(syringe.Beeper)
		if !ok {
			return fmt.Errorf("this pump model has no buzzer")
		}
		return b.Beep(1)
	}),
}

func init() {
	bolusCmd.Flags().Float64Var(&bolusRate, "rate", syringe.BolusRate, "bolus delivery rate")
	bolusCmd.Flags().StringVar(&bolusUnit, "unit", syringe.BolusRateUnit.String(), "bolus rate unit")
	rootCmd.AddCommand(statusCmd, runCmd, stopCmd, reverseCmd, rateCmd, diameterCmd, targetCmd, bolusCmd, beepCmd)
}
