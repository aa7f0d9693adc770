package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
	"github.com/eugenenazirov/bicarb-prep/internal/preparation"
	"github.com/eugenenazirov/bicarb-prep/internal/report"
)

const appVersion = "1.0.0"

type jsonOutput struct {
	Patients          int             `json:"patients"`
	EffectivePatients int             `json:"effectivePatients"`
	DemandLiters      decimal.Decimal `json:"demandLiters"`
	Bags              int             `json:"bags"`
	FinalVolumeLiters decimal.Decimal `json:"finalVolumeLiters"`
	SingleBag         bool            `json:"singleBag"`
	Floored           bool            `json:"floored"`
	Report            report.Report   `json:"report"`
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var (
		patientsStr      string
		litersPerPatient string
		litersPerBag     string
		lang             string
		asJSON           bool
	)

	defaults := calculator.DefaultRates()

	cmd := &cobra.Command{
		Use:          "bicarbcalc",
		Short:        "Bicarbonate bag calculator (adds 1 patient as safety margin)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag := report.Parse(lang)

			patients, err := strconv.Atoi(strings.TrimSpace(patientsStr))
			if err != nil || patients < 1 {
				return errors.New(report.ErrorMessage(calculator.ErrInvalidPatientCount, tag))
			}

			rates, err := parseRates(litersPerPatient, litersPerBag)
			if err != nil {
				return err
			}

			plan, err := preparation.NewPlanner(nil).Plan(patients, rates)
			if err != nil {
				return errors.New(report.ErrorMessage(err, tag))
			}
			rep := report.Build(plan, tag)

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(jsonOutput{
					Patients:          plan.RequestedPatients,
					EffectivePatients: plan.EffectivePatients,
					DemandLiters:      plan.Demand,
					Bags:              plan.Bags,
					FinalVolumeLiters: plan.FinalVolume,
					SingleBag:         plan.Water.SingleBag,
					Floored:           plan.Water.Floored,
					Report:            rep,
				})
			}
			printReport(out, rep)
			return nil
		},
	}

	cmd.Version = appVersion
	cmd.SetVersionTemplate("bicarbcalc v{{.Version}}\n")
	cmd.SetOut(out)

	cmd.Flags().StringVarP(&patientsStr, "patients", "p", "", "Number of real patients (the safety margin is added automatically)")
	cmd.Flags().StringVar(&litersPerPatient, "liters-per-patient", defaults.LitersPerPatient.String(), "Liters of solution per patient")
	cmd.Flags().StringVar(&litersPerBag, "liters-per-bag", defaults.LitersPerBag.String(), "Liters of solution one bag prepares")
	cmd.Flags().StringVar(&lang, "lang", "es", "Output language (es or en)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("patients")

	return cmd
}

func parseRates(perPatient, perBag string) (calculator.Rates, error) {
	lpp, err := decimal.NewFromString(strings.TrimSpace(perPatient))
	if err != nil {
		return calculator.Rates{}, fmt.Errorf("--liters-per-patient: %w", err)
	}
	lpb, err := decimal.NewFromString(strings.TrimSpace(perBag))
	if err != nil {
		return calculator.Rates{}, fmt.Errorf("--liters-per-bag: %w", err)
	}
	return calculator.Rates{LitersPerPatient: lpp, LitersPerBag: lpb}, nil
}

func printReport(out io.Writer, rep report.Report) {
	fmt.Fprintln(out, rep.Title)
	fmt.Fprintln(out, "  "+rep.Bags)
	fmt.Fprintln(out, "  "+rep.FinalVolume)
	fmt.Fprintln(out)
	fmt.Fprintln(out, rep.WaterHeading)
	fmt.Fprintln(out, "  "+rep.Instruction)
	for _, note := range rep.Notes {
		fmt.Fprintln(out, "  "+note)
	}
	fmt.Fprintln(out)
	for _, reminder := range rep.Reminders {
		fmt.Fprintln(out, "- "+reminder)
	}
}
